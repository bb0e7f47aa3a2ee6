package query

import (
	"context"

	"github.com/Dhanush6858/green-gaurdian/config"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/recommendation"
	"github.com/Dhanush6858/green-gaurdian/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET RECOMMENDATIONS QUERY
// Рекомендации по товару: кэш, затем удалённый сервис, затем локальная
// замена. Ошибка сервиса никогда не доходит до вызывающего.
// ══════════════════════════════════════════════════════════════════════════════

// GetRecommendationsQuery содержит товар со страницы магазина.
type GetRecommendationsQuery struct {
	// InstallationID - необязателен, нужен для постепенного включения функции.
	InstallationID string

	Product recommendation.Product
}

// RecommendationsDTO - рекомендации вместе с разобранными полями товара.
type RecommendationsDTO struct {
	*recommendation.Payload

	Product  recommendation.Product  `json:"product"`
	Category recommendation.Category `json:"category"`

	// Cached - ответ сервиса взят из кэша.
	Cached bool `json:"cached"`
}

// GetRecommendationsHandler обрабатывает GetRecommendationsQuery.
type GetRecommendationsHandler struct {
	provider recommendation.Provider
	cache    recommendation.Cache
	flags    *config.FeatureFlags
	log      *logger.Logger
}

// NewGetRecommendationsHandler создаёт обработчик.
// provider, cache и flags могут быть nil: без provider всегда используется
// локальная замена, без flags удалённый сервис считается включённым.
func NewGetRecommendationsHandler(
	provider recommendation.Provider,
	cache recommendation.Cache,
	flags *config.FeatureFlags,
	log *logger.Logger,
) *GetRecommendationsHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &GetRecommendationsHandler{
		provider: provider,
		cache:    cache,
		flags:    flags,
		log:      log.With(logger.Component("recommendations")),
	}
}

// Handle выполняет запрос. Всегда возвращает рекомендации.
func (h *GetRecommendationsHandler) Handle(ctx context.Context, q GetRecommendationsQuery) *RecommendationsDTO {
	product := q.Product.Normalize()
	dto := &RecommendationsDTO{
		Product:  product,
		Category: recommendation.ExtractCategory(product.Title, product.Brand),
	}

	if h.remoteEnabled(q.InstallationID) {
		if p, cached := h.fetch(ctx, product); p != nil {
			dto.Payload = p
			dto.Cached = cached
			return dto
		}
	}

	dto.Payload = recommendation.Fallback(product)
	return dto
}

func (h *GetRecommendationsHandler) remoteEnabled(installationID string) bool {
	if h.provider == nil {
		return false
	}
	if h.flags == nil {
		return true
	}
	return h.flags.IsEnabled(config.FeatureRemoteRecommendations, &config.FeatureContext{InstallationID: installationID})
}

// fetch возвращает nil, если сервис не дал пригодного ответа.
func (h *GetRecommendationsHandler) fetch(ctx context.Context, product recommendation.Product) (*recommendation.Payload, bool) {
	key := product.Key()
	log := h.log.With(logger.String("product_key", key))

	if h.cache != nil {
		if p, ok := h.cache.Get(ctx, key); ok {
			p.Source = recommendation.SourceRemote
			return p, true
		}
	}

	p, err := h.provider.Fetch(ctx, product)
	if err != nil {
		log.Warn("recommendation service unavailable, using fallback", logger.Err(err))
		return nil, false
	}
	if err := p.Validate(); err != nil {
		log.Warn("recommendation service returned unusable payload, using fallback", logger.Err(err))
		return nil, false
	}
	p.Source = recommendation.SourceRemote

	if h.cache != nil {
		if err := h.cache.Put(ctx, key, p); err != nil {
			log.Debug("failed to cache recommendations", logger.Err(err))
		}
	}
	return p, false
}

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Dhanush6858/green-gaurdian/internal/domain/progress"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/recommendation"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST BODIES
// ══════════════════════════════════════════════════════════════════════════════

type recordActionRequest struct {
	Kind   string  `json:"kind"   validate:"required,oneof=viewed_alternative chose_secondhand chose_eco_shipping saved_emissions saved_money price_alert_set"`
	Amount float64 `json:"amount" validate:"gte=0,lte=1000000000"`

	CO2Kg      float64 `json:"co2Kg"      validate:"gte=0,lte=1000000000"`
	MoneySaved float64 `json:"moneySaved" validate:"gte=0,lte=1000000000"`

	IdempotencyKey string `json:"idempotencyKey" validate:"max=128"`
}

type updateChallengeRequest struct {
	// Delta defaults to 1.
	Delta float64 `json:"delta" validate:"gte=0,lte=1000000000"`
}

type updateSettingsRequest struct {
	EnableNotifications   *bool    `json:"enableNotifications"`
	EnableOverlay         *bool    `json:"enableOverlay"`
	PreferredMarketplaces []string `json:"preferredMarketplaces" validate:"omitempty,dive,oneof=ebay backmarket amazon_renewed swappa decluttr"`
	CarbonEmissionUnits   *string  `json:"carbonEmissionUnits"   validate:"omitempty,oneof=kg lbs"`
}

func (r updateSettingsRequest) patch() progress.SettingsPatch {
	return progress.SettingsPatch{
		EnableNotifications:   r.EnableNotifications,
		EnableOverlay:         r.EnableOverlay,
		PreferredMarketplaces: r.PreferredMarketplaces,
		CarbonEmissionUnits:   r.CarbonEmissionUnits,
	}
}

type recommendationsRequest struct {
	InstallationID string `json:"installationId" validate:"omitempty,max=128"`

	Product struct {
		Title    string `json:"title"    validate:"max=512"`
		Price    string `json:"price"    validate:"max=64"`
		Brand    string `json:"brand"    validate:"max=128"`
		ASIN     string `json:"asin"     validate:"omitempty,alphanum,max=16"`
		Image    string `json:"image"    validate:"omitempty,url"`
		Category string `json:"category" validate:"max=128"`
		URL      string `json:"url"      validate:"omitempty,url"`
	} `json:"product"`
}

func (r recommendationsRequest) product() recommendation.Product {
	return recommendation.Product{
		Title:    r.Product.Title,
		Price:    r.Product.Price,
		Brand:    r.Product.Brand,
		ASIN:     r.Product.ASIN,
		Image:    r.Product.Image,
		Category: r.Product.Category,
		URL:      r.Product.URL,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DECODING AND VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// errBadRequest marks errors caused by a malformed request body.
var errBadRequest = errors.New("bad request")

// decodeJSON decodes the body into dst and validates it. An empty body
// leaves dst unchanged when allowEmpty is set.
func decodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
		}
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s", errBadRequest, describeValidation(err))
	}
	return nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), strings.SplitN(fe.Namespace(), ".", 2)[0]+".")
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s must satisfy %s", field, fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

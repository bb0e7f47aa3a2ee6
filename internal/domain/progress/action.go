package progress

import (
	"math"
	"strings"

	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTION KINDS
// ══════════════════════════════════════════════════════════════════════════════

// ActionKind - вид пользовательского действия.
type ActionKind string

const (
	KindViewedAlternative ActionKind = "viewed_alternative"
	KindChoseSecondhand   ActionKind = "chose_secondhand"
	KindChoseEcoShipping  ActionKind = "chose_eco_shipping"
	KindSavedEmissions    ActionKind = "saved_emissions"
	KindSavedMoney        ActionKind = "saved_money"
	KindPriceAlertSet     ActionKind = "price_alert_set"
)

// Фиксированные награды и множители.
const (
	XPViewedAlternative = 5
	XPChoseSecondhand   = 25
	XPChoseEcoShipping  = 15
	XPPriceAlertSet     = 10

	// XPPerKgCO2 - XP за каждый сэкономленный килограмм CO₂.
	XPPerKgCO2 = 10
	// MoneyPerXP - сколько долларов экономии дают 1 XP.
	MoneyPerXP = 5
)

// AllActionKinds возвращает все виды действий в стабильном порядке.
func AllActionKinds() []ActionKind {
	return []ActionKind{
		KindViewedAlternative,
		KindChoseSecondhand,
		KindChoseEcoShipping,
		KindSavedEmissions,
		KindSavedMoney,
		KindPriceAlertSet,
	}
}

// IsValid проверяет, что вид действия известен.
func (k ActionKind) IsValid() bool {
	for _, known := range AllActionKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTION (tagged union)
// ══════════════════════════════════════════════════════════════════════════════

// Action - размеченное объединение действий. Каждый вариант несёт только
// нужные ему поля.
type Action interface {
	Kind() ActionKind
	Validate() error
	// XP возвращает фиксированную награду за действие.
	XP() int
	// Description - короткое описание для уведомлений и журнала.
	Description() string

	isAction()
}

// ViewedAlternative - пользователь открыл экологичную альтернативу.
type ViewedAlternative struct{}

// ChoseSecondhand - пользователь выбрал б/у товар вместо нового.
type ChoseSecondhand struct {
	CO2Kg      float64 `json:"co2Kg,omitempty"`
	MoneySaved float64 `json:"moneySaved,omitempty"`
}

// ChoseEcoShipping - пользователь выбрал экологичную доставку.
type ChoseEcoShipping struct {
	CO2Kg float64 `json:"co2Kg,omitempty"`
}

// SavedEmissions - сэкономлено Kg килограммов CO₂.
type SavedEmissions struct {
	Kg float64 `json:"kg"`
}

// SavedMoney - сэкономлено Amount долларов.
type SavedMoney struct {
	Amount float64 `json:"amount"`
}

// PriceAlertSet - пользователь подписался на снижение цены.
type PriceAlertSet struct{}

func (ViewedAlternative) Kind() ActionKind { return KindViewedAlternative }
func (ChoseSecondhand) Kind() ActionKind   { return KindChoseSecondhand }
func (ChoseEcoShipping) Kind() ActionKind  { return KindChoseEcoShipping }
func (SavedEmissions) Kind() ActionKind    { return KindSavedEmissions }
func (SavedMoney) Kind() ActionKind        { return KindSavedMoney }
func (PriceAlertSet) Kind() ActionKind     { return KindPriceAlertSet }

func (ViewedAlternative) Validate() error { return nil }
func (PriceAlertSet) Validate() error     { return nil }

func (a ChoseSecondhand) Validate() error {
	if err := shared.ValidateMagnitude(a.CO2Kg); err != nil {
		return err
	}
	return shared.ValidateMagnitude(a.MoneySaved)
}

func (a ChoseEcoShipping) Validate() error { return shared.ValidateMagnitude(a.CO2Kg) }
func (a SavedEmissions) Validate() error   { return shared.ValidateMagnitude(a.Kg) }
func (a SavedMoney) Validate() error       { return shared.ValidateMagnitude(a.Amount) }

func (ViewedAlternative) XP() int { return XPViewedAlternative }
func (ChoseSecondhand) XP() int   { return XPChoseSecondhand }
func (ChoseEcoShipping) XP() int  { return XPChoseEcoShipping }
func (PriceAlertSet) XP() int     { return XPPriceAlertSet }

// XP округляет вниз: 1.29 кг дают 12 XP.
func (a SavedEmissions) XP() int { return scaledXP(a.Kg * XPPerKgCO2) }

// XP округляет вниз: $14 дают 2 XP.
func (a SavedMoney) XP() int { return scaledXP(a.Amount / MoneyPerXP) }

// scaledXP округляет вниз и ограничивает награду диапазоном [0, MaxXP],
// чтобы преобразование в int не переполнялось.
func scaledXP(v float64) int {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	return int(math.Min(math.Floor(v), float64(shared.MaxXP)))
}

func (ViewedAlternative) Description() string { return "Explored eco-friendly alternative" }
func (ChoseSecondhand) Description() string   { return "Chose secondhand over new" }
func (ChoseEcoShipping) Description() string  { return "Selected eco-friendly shipping" }
func (SavedEmissions) Description() string    { return "Reduced carbon footprint" }
func (SavedMoney) Description() string        { return "Saved money sustainably" }
func (PriceAlertSet) Description() string     { return "Set a price alert" }

func (ViewedAlternative) isAction() {}
func (ChoseSecondhand) isAction()   {}
func (ChoseEcoShipping) isAction()  {}
func (SavedEmissions) isAction()    {}
func (SavedMoney) isAction()        {}
func (PriceAlertSet) isAction()     {}

// ActionParams - плоское представление действия на границе системы (HTTP, CLI).
type ActionParams struct {
	Kind       string
	Amount     float64 // кг для saved_emissions, доллары для saved_money
	CO2Kg      float64
	MoneySaved float64
}

// NewAction собирает вариант Action из плоских параметров и валидирует его.
func NewAction(params ActionParams) (Action, error) {
	var a Action
	switch ActionKind(strings.TrimSpace(strings.ToLower(params.Kind))) {
	case KindViewedAlternative:
		a = ViewedAlternative{}
	case KindChoseSecondhand:
		a = ChoseSecondhand{CO2Kg: params.CO2Kg, MoneySaved: params.MoneySaved}
	case KindChoseEcoShipping:
		a = ChoseEcoShipping{CO2Kg: params.CO2Kg}
	case KindSavedEmissions:
		a = SavedEmissions{Kg: params.Amount}
	case KindSavedMoney:
		a = SavedMoney{Amount: params.Amount}
	case KindPriceAlertSet:
		a = PriceAlertSet{}
	default:
		return nil, shared.ErrUnknownAction
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

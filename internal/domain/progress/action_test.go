package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
)

func TestAction_XP(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		xp     int
	}{
		{"viewed alternative", ViewedAlternative{}, 5},
		{"chose secondhand", ChoseSecondhand{CO2Kg: 3}, 25},
		{"eco shipping", ChoseEcoShipping{}, 15},
		{"price alert", PriceAlertSet{}, 10},
		{"emissions truncate", SavedEmissions{Kg: 1.29}, 12},
		{"emissions whole", SavedEmissions{Kg: 12}, 120},
		{"money truncate", SavedMoney{Amount: 14}, 2},
		{"money below one xp", SavedMoney{Amount: 4.99}, 0},
		{"emissions capped at max xp", SavedEmissions{Kg: 1e20}, int(shared.MaxXP)},
		{"money capped at max xp", SavedMoney{Amount: 1e300}, int(shared.MaxXP)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.xp, tt.action.XP())
		})
	}
}

func TestNewAction(t *testing.T) {
	a, err := NewAction(ActionParams{Kind: "saved_emissions", Amount: 2.5})
	require.NoError(t, err)
	assert.Equal(t, SavedEmissions{Kg: 2.5}, a)

	a, err = NewAction(ActionParams{Kind: " Chose_Secondhand ", CO2Kg: 4, MoneySaved: 30})
	require.NoError(t, err)
	assert.Equal(t, ChoseSecondhand{CO2Kg: 4, MoneySaved: 30}, a)

	_, err = NewAction(ActionParams{Kind: "teleported"})
	assert.ErrorIs(t, err, shared.ErrUnknownAction)
	assert.True(t, shared.IsValidation(err))

	_, err = NewAction(ActionParams{Kind: "saved_money", Amount: -1})
	assert.ErrorIs(t, err, shared.ErrInvalidMagnitude)

	_, err = NewAction(ActionParams{Kind: "chose_secondhand", CO2Kg: 1e308})
	assert.ErrorIs(t, err, shared.ErrInvalidMagnitude)
	assert.True(t, shared.IsValidation(err))
}

func TestActionKind_IsValid(t *testing.T) {
	for _, k := range AllActionKinds() {
		assert.True(t, k.IsValid(), k)
	}
	assert.False(t, ActionKind("unknown").IsValid())
}

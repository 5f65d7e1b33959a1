package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// UserProfile is the health and lifestyle information collected from one
// form submission. It lives for a single request.
type UserProfile struct {
	Age               int      `json:"age" form:"age" validate:"min=1,max=120"`
	Gender            string   `json:"gender" form:"gender" validate:"gender"`
	Height            string   `json:"height" form:"height" validate:"required,max=64"`
	Weight            string   `json:"weight" form:"weight" validate:"required,max=64"`
	ActivityLevel     string   `json:"activity_level" form:"activity_level" validate:"activity_level"`
	Goals             []string `json:"goals" form:"goals" validate:"required,min=1,dive,goal"`
	MedicalConditions string   `json:"medical_conditions" form:"medical_conditions" validate:"max=2000"`
	Medications       string   `json:"medications" form:"medications" validate:"max=2000"`
	Allergies         string   `json:"allergies" form:"allergies" validate:"max=2000"`
	FoodPreferences   string   `json:"food_preferences" form:"food_preferences" validate:"max=2000"`
	CookingAbility    string   `json:"cooking_ability" form:"cooking_ability" validate:"cooking_ability"`
	Budget            string   `json:"budget" form:"budget" validate:"budget"`
	CulturalFactors   string   `json:"cultural_factors" form:"cultural_factors" validate:"max=2000"`

	// ageSet records an age key present in a JSON body, so an explicit 0 is
	// validated instead of replaced by the default.
	ageSet bool
}

// UnmarshalJSON decodes the profile and notes whether age was sent.
func (p *UserProfile) UnmarshalJSON(data []byte) error {
	type plain UserProfile
	var body struct {
		plain
		Age *int `json:"age"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}
	*p = UserProfile(body.plain)
	if body.Age != nil {
		p.Age = *body.Age
		p.ageSet = true
	}
	return nil
}

// Field keys of the flat mapping handed to the task templates.
const (
	FieldAge               = "age"
	FieldGender            = "gender"
	FieldHeight            = "height"
	FieldWeight            = "weight"
	FieldActivityLevel     = "activity_level"
	FieldGoals             = "goals"
	FieldMedicalConditions = "medical_conditions"
	FieldMedications       = "medications"
	FieldAllergies         = "allergies"
	FieldFoodPreferences   = "food_preferences"
	FieldCookingAbility    = "cooking_ability"
	FieldBudget            = "budget"
	FieldCulturalFactors   = "cultural_factors"
)

// FieldKeys lists every key Fields returns, in form order.
var FieldKeys = []string{
	FieldAge,
	FieldGender,
	FieldHeight,
	FieldWeight,
	FieldActivityLevel,
	FieldGoals,
	FieldMedicalConditions,
	FieldMedications,
	FieldAllergies,
	FieldFoodPreferences,
	FieldCookingAbility,
	FieldBudget,
	FieldCulturalFactors,
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func profileValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		register := func(tag string, options []string) {
			_ = validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
				return contains(options, fl.Field().String())
			})
		}
		register("gender", GenderOptions)
		register("activity_level", ActivityLevelOptions)
		register("goal", GoalOptions)
		register("cooking_ability", CookingAbilityOptions)
		register("budget", BudgetOptions)
	})
	return validate
}

// Normalize returns a copy of p with widget defaults and placeholder text
// substituted for blank fields. Goals are left untouched: an empty goal list
// is a validation error, and Fields renders the placeholder for it.
func (p UserProfile) Normalize() UserProfile {
	out := p
	if out.Age == 0 && !out.ageSet {
		out.Age = DefaultAge
	}
	out.Gender = orDefault(out.Gender, GenderOptions[0])
	out.Height = orDefault(out.Height, DefaultHeight)
	out.Weight = orDefault(out.Weight, DefaultWeight)
	out.ActivityLevel = orDefault(out.ActivityLevel, ActivityLevelOptions[0])
	out.CookingAbility = orDefault(out.CookingAbility, CookingAbilityOptions[0])
	out.Budget = orDefault(out.Budget, BudgetOptions[0])
	out.MedicalConditions = orDefault(out.MedicalConditions, DefaultNoneReported)
	out.Medications = orDefault(out.Medications, DefaultNoneReported)
	out.Allergies = orDefault(out.Allergies, DefaultNoneReported)
	out.FoodPreferences = orDefault(out.FoodPreferences, DefaultFoodPreferences)
	out.CulturalFactors = orDefault(out.CulturalFactors, DefaultCulturalFactors)

	goals := make([]string, 0, len(out.Goals))
	for _, goal := range out.Goals {
		if goal = strings.TrimSpace(goal); goal != "" {
			goals = append(goals, goal)
		}
	}
	out.Goals = goals
	return out
}

// Validate reports the first problem with the profile as a ValidationError.
func (p UserProfile) Validate() error {
	err := profileValidator().Struct(p)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validate profile: %w", err)
	}
	return &ValidationError{Field: jsonName(fieldErrs[0]), Message: describe(fieldErrs[0])}
}

// Fields flattens the profile into the mapping consumed by the task
// templates. Callers should Normalize first.
func (p UserProfile) Fields() map[string]string {
	goals := DefaultGoals
	if len(p.Goals) > 0 {
		goals = strings.Join(p.Goals, ", ")
	}
	return map[string]string{
		FieldAge:               strconv.Itoa(p.Age),
		FieldGender:            p.Gender,
		FieldHeight:            p.Height,
		FieldWeight:            p.Weight,
		FieldActivityLevel:     p.ActivityLevel,
		FieldGoals:             goals,
		FieldMedicalConditions: p.MedicalConditions,
		FieldMedications:       p.Medications,
		FieldAllergies:         p.Allergies,
		FieldFoodPreferences:   p.FoodPreferences,
		FieldCookingAbility:    p.CookingAbility,
		FieldBudget:            p.Budget,
		FieldCulturalFactors:   p.CulturalFactors,
	}
}

// ValidationError is returned when a submitted profile is unusable.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

func jsonName(fe validator.FieldError) string {
	name := fe.StructField()
	if idx := strings.IndexByte(name, '['); idx >= 0 {
		name = name[:idx]
	}
	switch name {
	case "ActivityLevel":
		return FieldActivityLevel
	case "MedicalConditions":
		return FieldMedicalConditions
	case "FoodPreferences":
		return FieldFoodPreferences
	case "CookingAbility":
		return FieldCookingAbility
	case "CulturalFactors":
		return FieldCulturalFactors
	default:
		return strings.ToLower(name)
	}
}

func describe(fe validator.FieldError) string {
	field := jsonName(fe)
	switch fe.Tag() {
	case "required":
		if field == FieldGoals {
			return "Please select at least one nutrition goal."
		}
		return field + " is required"
	case "min":
		if field == FieldGoals {
			return "Please select at least one nutrition goal."
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if field == FieldAge {
			return fmt.Sprintf("age must be at most %d", MaxAge)
		}
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "gender":
		return "gender must be one of: " + strings.Join(GenderOptions, ", ")
	case "activity_level":
		return "activity_level must be one of: " + strings.Join(ActivityLevelOptions, ", ")
	case "goal":
		return "goals must be chosen from: " + strings.Join(GoalOptions, ", ")
	case "cooking_ability":
		return "cooking_ability must be one of: " + strings.Join(CookingAbilityOptions, ", ")
	case "budget":
		return "budget must be one of: " + strings.Join(BudgetOptions, ", ")
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

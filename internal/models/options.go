package models

// Form option lists. The values are sent verbatim to the agents, so they are
// kept human readable rather than snake_cased.
var (
	GenderOptions = []string{"Male", "Female", "Non-binary/Other"}

	ActivityLevelOptions = []string{
		"Sedentary",
		"Lightly Active",
		"Moderately Active",
		"Very Active",
		"Extremely Active",
	}

	GoalOptions = []string{
		"Weight Loss",
		"Weight Gain",
		"Maintenance",
		"Muscle Building",
		"Better Energy",
		"Improved Athletic Performance",
		"Disease Management",
		"General Health",
	}

	CookingAbilityOptions = []string{
		"Very Limited",
		"Basic/Quick Meals",
		"Average",
		"Advanced/Can Spend Time",
		"Professional Level",
	}

	BudgetOptions = []string{
		"Very Limited",
		"Budget Conscious",
		"Moderate",
		"Flexible",
		"No Constraints",
	}
)

// Placeholders substituted for blank optional fields.
const (
	DefaultGoals           = "General health improvement"
	DefaultNoneReported    = "None reported"
	DefaultFoodPreferences = "No specific preferences"
	DefaultCulturalFactors = "No specific factors"
	DefaultAge             = 30
	DefaultHeight          = `5'10"`
	DefaultWeight          = "160 lbs"
	MinAge                 = 1
	MaxAge                 = 120
)

func contains(options []string, value string) bool {
	for _, option := range options {
		if option == value {
			return true
		}
	}
	return false
}

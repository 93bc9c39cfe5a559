package planner

import "github.com/plano-ai/plano/internal/domain"

// SamplePlan returns the demo plan offered before any document is imported:
// three monday meals and empty days for the rest of the week.
func SamplePlan() domain.WeekPlan {
	monday := domain.DayPlan{
		Day: domain.Monday,
		Meals: []domain.Meal{
			{
				ID: "m1", Name: "Café da Manhã", Time: "07:00",
				Items: []domain.MealItem{
					{ID: "i1", Name: "2 Ovos mexidos"},
					{ID: "i2", Name: "1 fatia de pão integral"},
					{ID: "i3", Name: "Café preto sem açúcar"},
				},
			},
			{
				ID: "m2", Name: "Almoço", Time: "12:00",
				Items: []domain.MealItem{
					{ID: "i4", Name: "100g Frango grelhado"},
					{ID: "i5", Name: "Salada verde à vontade"},
					{ID: "i6", Name: "2 colheres de arroz integral"},
				},
			},
			{
				ID: "m3", Name: "Jantar", Time: "19:00",
				Items: []domain.MealItem{
					{ID: "i7", Name: "Sopa de legumes"},
					{ID: "i8", Name: "1 fruta cítrica"},
				},
			},
		},
	}
	return domain.WeekPlan{}.WithDay(domain.Monday, monday)
}

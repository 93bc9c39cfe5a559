// Package interpret implements the plan interpreter and meal analyzer
// backends: a remote HTTP service, OpenAI chat completions and a
// deterministic fixture.
package interpret

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/plano-ai/plano/internal/domain"
)

// Backend names accepted by New.
const (
	BackendHTTP    = "http"
	BackendOpenAI  = "openai"
	BackendFixture = "fixture"
)

// UnknownAdherence is the adherence reported when the service omits it.
const UnknownAdherence = "Indefinido"

// DietPlanPrompt asks a model to extract a weekly plan from a document.
const DietPlanPrompt = `Você é um assistente especializado em extrair planos alimentares de PDFs brasileiros.

Analise o documento anexado e retorne APENAS um JSON válido, sem nenhum texto antes ou depois, exatamente nesta estrutura:

{
  "diet": {
    "Seg": [ /* refeições completas de segunda */ ],
    "Ter": [ /* refeições completas de terça */ ],
    "Qua": [ /* refeições completas de quarta */ ],
    "Qui": [ /* refeições completas de quinta */ ],
    "Sex": [ /* refeições completas de sexta */ ],
    "Sab": [ /* refeições completas de sábado */ ],
    "Dom": [ /* refeições completas de domingo */ ]
  }
}

Regras obrigatórias:
- Cada dia é independente.
- Se o plano diz "Seg Qua Sex", copie exatamente o mesmo conteúdo para Seg, Qua e Sex.
- Se diz "Ter Qui Sab Dom", copie exatamente o mesmo conteúdo para Ter, Qui, Sab e Dom.
- Cada refeição deve ter:
  {
    "time": "HH:MM",
    "name": "Nome da refeição",
    "options": [
      ["Alimento completo com quantidade e marca quando houver", "Outro alimento da mesma opção"],
      [ /* próxima opção, se existir */ ]
    ]
  }
- Quando houver "ou" dentro da mesma linha, mantenha no mesmo item com "ou".
- Quando houver várias linhas separadas com •, cada linha vira um item do array da opção.
- Se houver "Substituição 1" ou similar, vira uma segunda opção dentro do mesmo horário.
- Ignore kcal, grupos alimentares, nome do nutricionista, nome do paciente e observações.
- Resposta deve ser 100% JSON válido, sem markdown e sem explicações.

Retorne somente o JSON.`

// MealAnalysisPrompt asks a model to judge meal photos against the planned
// meal. {dia}, {refeicao} and {plano_refeicao_json} are substituted by
// AnalysisPrompt.
const MealAnalysisPrompt = `Você é um assistente especializado em análise nutricional de refeições via imagens.
Analise as imagens anexadas da refeição consumida. Descreva os ingredientes identificados, estime quantidades aproximadas e valores nutricionais (calorias, proteínas, carboidratos, gorduras) com base em conhecimento geral de alimentos.
Compare com o plano alimentar fornecido para o dia "{dia}" e refeição "{refeicao}": {plano_refeicao_json} (inclua opções e substituições).
Calcule:

Aderência: Alta, Média ou Baixa (baseado em similaridade de itens, quantidades e nutrientes).
Percentual de proximidade ao ideal: Número de 0 a 100%.
Pontuação: Número de 0 a 10 para gamificação (baseado em aderência, equilíbrio nutricional e completude).

Retorne APENAS um JSON válido, sem texto extra:
{
"aderencia": "Alta/Média/Baixa",
"percentual": 85,
"pontuacao": 8,
"descricao": "Breve explicação da análise e comparação.",
"nutrientes_estimados": {
"calorias": 500,
"proteinas": 20,
"carboidratos": 60,
"gorduras": 15
}
}`

// AnalysisPrompt fills MealAnalysisPrompt for one request.
func AnalysisPrompt(dayLabel, mealName, plannedJSON string) string {
	return strings.NewReplacer(
		"{dia}", dayLabel,
		"{refeicao}", mealName,
		"{plano_refeicao_json}", plannedJSON,
	).Replace(MealAnalysisPrompt)
}

var (
	fenceOpen  = regexp.MustCompile("^```(?:json)?\\s*")
	fenceClose = regexp.MustCompile("\\s*```$")
)

// SanitizeResponse strips surrounding whitespace and a markdown code fence
// from a model response.
func SanitizeResponse(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = fenceOpen.ReplaceAllString(text, "")
		text = fenceClose.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}

// ─── Plan & Analysis Decoding ───────────────────────────────────────────────

// DecodePlan parses a service or model response into a raw plan.
func DecodePlan(body []byte) (domain.RawDietPlan, error) {
	text := SanitizeResponse(string(body))
	if !json.Valid([]byte(text)) {
		return domain.RawDietPlan{}, fmt.Errorf("%w: plan response is not JSON", domain.ErrBadServiceResponse)
	}
	var plan domain.RawDietPlan
	if err := json.Unmarshal([]byte(text), &plan); err != nil {
		return domain.RawDietPlan{}, fmt.Errorf("%w: %v", domain.ErrBadServiceResponse, err)
	}
	return plan, nil
}

// Number is a JSON number that also accepts numeric strings ("85").
// Any other value decodes as 0.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	*n = 0
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*n = Number(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*n = Number(f)
		}
	}
	return nil
}

// RawAnalysis is an analysis payload with every field optional.
type RawAnalysis struct {
	Adherence   *string `json:"aderencia"`
	Percent     *Number `json:"percentual"`
	Points      *Number `json:"pontuacao"`
	Description *string `json:"descricao"`
	Nutrients   *struct {
		Calories *Number `json:"calorias"`
		Protein  *Number `json:"proteinas"`
		Carbs    *Number `json:"carboidratos"`
		Fat      *Number `json:"gorduras"`
	} `json:"nutrientes_estimados"`
}

// DecodeAnalysis parses a service or model response and applies
// NormalizeAnalysis defaults.
func DecodeAnalysis(body []byte) (domain.MealAnalysis, error) {
	text := SanitizeResponse(string(body))
	var p RawAnalysis
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return domain.MealAnalysis{}, fmt.Errorf("%w: analysis: %v", domain.ErrBadServiceResponse, err)
	}
	return NormalizeAnalysis(p), nil
}

// NormalizeAnalysis fills missing fields with "Indefinido" and zeros, and
// replaces non-finite numbers with 0.
func NormalizeAnalysis(p RawAnalysis) domain.MealAnalysis {
	a := domain.MealAnalysis{
		Adherence: UnknownAdherence,
		Percent:   finite(p.Percent),
		Points:    finite(p.Points),
	}
	if p.Adherence != nil && strings.TrimSpace(*p.Adherence) != "" {
		a.Adherence = *p.Adherence
	}
	if p.Description != nil {
		a.Description = *p.Description
	}
	if n := p.Nutrients; n != nil {
		a.Nutrients = domain.NutrientEstimate{
			Calories: finite(n.Calories),
			Protein:  finite(n.Protein),
			Carbs:    finite(n.Carbs),
			Fat:      finite(n.Fat),
		}
	}
	return a
}

func finite(v *Number) float64 {
	if v == nil {
		return 0
	}
	f := float64(*v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// plannedMeal is the wire shape of a planned meal sent to the analyzer.
type plannedMeal struct {
	ID   string   `json:"id"`
	Name string   `json:"nome"`
	Time string   `json:"horario"`
	Item []string `json:"itens"`
}

// PlannedMealJSON encodes a planned meal as {id, nome, horario, itens}.
func PlannedMealJSON(m domain.Meal) string {
	pm := plannedMeal{ID: m.ID, Name: m.Name, Time: m.Time, Item: make([]string, 0, len(m.Items))}
	for _, it := range m.Items {
		pm.Item = append(pm.Item, it.Name)
	}
	b, _ := json.Marshal(pm)
	return string(b)
}

package model

import "strings"

// CategoryGroup is a top-level equipment category with its subcategories
type CategoryGroup struct {
	Key           string   `json:"key"`
	Name          string   `json:"name"`
	Subcategories []string `json:"subcategories"`
	keywords      []string
}

var CategoryGroups = []CategoryGroup{
	{
		Key:           "cameras",
		Name:          CategoryCameras,
		Subcategories: []string{"DSLR Cameras", "Mirrorless Cameras", "Cinema Cameras", "Action Cameras", "Film Cameras", "Medium Format Cameras"},
		keywords:      []string{"camera", "dslr", "mirrorless", "camcorder"},
	},
	{
		Key:           "lenses",
		Name:          CategoryLenses,
		Subcategories: []string{"Prime Lenses", "Zoom Lenses", "Wide Angle Lenses", "Telephoto Lenses", "Macro Lenses", "Cinema Lenses"},
		keywords:      []string{"lens", "telephoto", "macro"},
	},
	{
		Key:           "lighting",
		Name:          CategoryLighting,
		Subcategories: []string{"LED Panels", "Softboxes", "Key Lights", "RGB Lights", "Studio Strobes", "Continuous Lights"},
		keywords:      []string{"light", "led", "softbox", "strobe", "flash"},
	},
	{
		Key:           "audio",
		Name:          CategoryAudio,
		Subcategories: []string{"Microphones", "Audio Recorders", "Wireless Systems", "Boom Poles", "Audio Mixers", "Headphones"},
		keywords:      []string{"audio", "microphone", "mic", "recorder", "boom", "mixer", "headphone"},
	},
	{
		Key:           "support",
		Name:          CategorySupportRigs,
		Subcategories: []string{"Tripods", "Monopods", "Gimbals", "Sliders", "Shoulder Rigs", "Stabilizers"},
		keywords:      []string{"support", "tripod", "monopod", "gimbal", "slider", "rig", "stabilizer"},
	},
	{
		Key:           "accessories",
		Name:          CategoryAccessories,
		Subcategories: []string{"Memory Cards", "Batteries", "Chargers", "Filters", "Cables", "Cases & Bags"},
		keywords:      []string{"accessor", "card", "batter", "charger", "filter", "cable", "case", "bag"},
	},
}

// keyword scan order: accessories and support before cameras so that
// "camera bag" or "camera rig" do not land in Cameras
var keywordOrder = []int{5, 4, 1, 2, 3, 0}

// CategoryNames returns the flat list of top-level category names
func CategoryNames() []string {
	names := make([]string, len(CategoryGroups))
	for i, g := range CategoryGroups {
		names[i] = g.Name
	}
	return names
}

// MapCategory maps free text (a category name or key, a subcategory, or a
// description such as "mirrorless camera body") onto a top-level category.
func MapCategory(text string) (string, bool) {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return "", false
	}

	for _, g := range CategoryGroups {
		if t == g.Key || t == strings.ToLower(g.Name) {
			return g.Name, true
		}
		for _, sub := range g.Subcategories {
			if t == strings.ToLower(sub) {
				return g.Name, true
			}
		}
	}

	words := strings.FieldsFunc(t, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	for _, i := range keywordOrder {
		g := CategoryGroups[i]
		for _, w := range words {
			for _, kw := range g.keywords {
				if strings.HasPrefix(w, kw) {
					return g.Name, true
				}
			}
		}
	}
	return "", false
}

// CategoriesResponse lists the dropdown options of the equipment form
type CategoriesResponse struct {
	Categories       []CategoryGroup `json:"categories"`
	FlatCategories   []string        `json:"flat_categories"`
	ConditionOptions []Condition     `json:"condition_options"`
	StatusOptions    []UnitStatus    `json:"status_options"`
}

func NewCategoriesResponse() *CategoriesResponse {
	return &CategoriesResponse{
		Categories:       CategoryGroups,
		FlatCategories:   CategoryNames(),
		ConditionOptions: ValidConditions,
		StatusOptions:    ValidUnitStatuses,
	}
}

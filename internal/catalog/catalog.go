package catalog

import "fmt"

// Service describes one entry of the fixed service catalog.
type Service struct {
	Name              string
	Price             int64
	NeedsDemographics bool
	Category          string
}

// The catalog is fixed: prices change with releases, not at runtime.
var services = map[string]Service{
	"Анализы крови/мочи":      {Name: "Анализы крови/мочи", Price: 290, NeedsDemographics: true, Category: "Анализы"},
	"Биохимия крови":          {Name: "Биохимия крови", Price: 290, NeedsDemographics: true, Category: "Анализы"},
	"Гормоны":                 {Name: "Гормоны", Price: 290, NeedsDemographics: true, Category: "Анализы"},
	"Общий анализ крови":      {Name: "Общий анализ крови", Price: 290, NeedsDemographics: true, Category: "Анализы"},
	"Общий анализ мочи":       {Name: "Общий анализ мочи", Price: 190, NeedsDemographics: true, Category: "Анализы"},
	"Липидограмма":            {Name: "Липидограмма", Price: 290, NeedsDemographics: true, Category: "Анализы"},
	"Печеночные пробы":        {Name: "Печеночные пробы", Price: 290, NeedsDemographics: true, Category: "Анализы"},
	"Коагулограмма":           {Name: "Коагулограмма", Price: 290, NeedsDemographics: true, Category: "Анализы"},
	"УЗИ":                     {Name: "УЗИ", Price: 390, NeedsDemographics: false, Category: "Исследования"},
	"Рентген":                 {Name: "Рентген", Price: 290, NeedsDemographics: false, Category: "Исследования"},
	"МРТ":                     {Name: "МРТ", Price: 390, NeedsDemographics: false, Category: "Исследования"},
	"КТ":                      {Name: "КТ", Price: 390, NeedsDemographics: false, Category: "Исследования"},
	"ЭКГ":                     {Name: "ЭКГ", Price: 390, NeedsDemographics: false, Category: "Исследования"},
	"Холтер":                  {Name: "Холтер", Price: 390, NeedsDemographics: false, Category: "Исследования"},
	"Флюорография":            {Name: "Флюорография", Price: 190, NeedsDemographics: false, Category: "Исследования"},
	"Врачебное заключение":    {Name: "Врачебное заключение", Price: 190, NeedsDemographics: false, Category: "Документы"},
	"Выписка из стационара":   {Name: "Выписка из стационара", Price: 190, NeedsDemographics: false, Category: "Документы"},
	"Назначения лечения":      {Name: "Назначения лечения", Price: 190, NeedsDemographics: false, Category: "Документы"},
	"Протокол операции":       {Name: "Протокол операции", Price: 190, NeedsDemographics: false, Category: "Документы"},
	"Результаты консультации": {Name: "Результаты консультации", Price: 190, NeedsDemographics: false, Category: "Документы"},
}

// Lookup returns the catalog entry for a service type.
func Lookup(serviceType string) (Service, error) {
	svc, ok := services[serviceType]
	if !ok {
		return Service{}, fmt.Errorf("unknown service type: %s", serviceType)
	}
	return svc, nil
}

// All returns every catalog entry.
func All() []Service {
	out := make([]Service, 0, len(services))
	for _, svc := range services {
		out = append(out, svc)
	}
	return out
}

package core

var (
	defaultExpenseCategories = []string{"Comida", "Transporte", "Vivienda", "Entretenimiento", "Salud", "Otros"}
	defaultIncomeCategories  = []string{"Sueldo", "Venta", "Inversión", "Regalo", "Otros"}
)

// DefaultCategoryNames returns the seed names for a category type.
// The returned slice is a copy.
func DefaultCategoryNames(t CategoryType) []string {
	var src []string
	switch t {
	case CategoryExpense:
		src = defaultExpenseCategories
	case CategoryIncome:
		src = defaultIncomeCategories
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// CategoryTypes lists every type in seeding order.
func CategoryTypes() []CategoryType {
	return []CategoryType{CategoryExpense, CategoryIncome}
}

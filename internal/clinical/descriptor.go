package clinical

// KindDescriptor tells the generic adherence code paths where one event kind
// lives: its log table, the assignment table the log links to, and the catalog
// that assignment points at.
type KindDescriptor struct {
	Kind            EventKind
	LogTable        string
	AssignmentTable string
	CatalogTable    string
	CatalogFK       string
}

var descriptors = map[EventKind]KindDescriptor{
	KindMedication: {
		Kind:            KindMedication,
		LogTable:        "medication_logs",
		AssignmentTable: "patient_medications",
		CatalogTable:    "medications",
		CatalogFK:       "medication_id",
	},
	KindExercise: {
		Kind:            KindExercise,
		LogTable:        "exercise_logs",
		AssignmentTable: "patient_exercises",
		CatalogTable:    "exercises",
		CatalogFK:       "exercise_id",
	},
	KindFood: {
		Kind:            KindFood,
		LogTable:        "meal_logs",
		AssignmentTable: "patient_foods",
		CatalogTable:    "foods",
		CatalogFK:       "food_id",
	},
}

// Describe returns the descriptor for kind.
func Describe(kind EventKind) (KindDescriptor, bool) {
	d, ok := descriptors[kind]
	return d, ok
}

// Kinds lists every event kind in a stable order.
func Kinds() []EventKind {
	return []EventKind{KindMedication, KindExercise, KindFood}
}

package kpi

// Strategy selects how daily values of a metric reduce to one weekly figure.
type Strategy int

const (
	StrategySum Strategy = iota
	StrategyMax
	StrategyAvg
)

func (s Strategy) String() string {
	switch s {
	case StrategyMax:
		return "max"
	case StrategyAvg:
		return "avg"
	default:
		return "sum"
	}
}

// Metric identifiers. Values double as JSON keys in the exported maps.
const (
	Workforce              = "workforce"
	HoursWorked            = "hours_worked"
	Inductions             = "inductions"
	Inspections            = "inspections"
	TrainingHours          = "training_hours"
	WorkPermits            = "work_permits"
	DisciplinaryActions    = "disciplinary_actions"
	LostWorkdays           = "lost_workdays"
	Accidents              = "accidents"
	NearMisses             = "near_misses"
	FirstAidCases          = "first_aid_cases"
	WaterConsumption       = "water_consumption"
	ElectricityConsumption = "electricity_consumption"
	Deviations             = "deviations"
	HSEComplianceRate      = "hse_compliance_rate"
	MedicalComplianceRate  = "medical_compliance_rate"
	NoiseLevel             = "noise_level"
)

// Derived rate keys, present in exported maps but never aggregated from days.
const (
	FrequencyRate = "tf"
	SeverityRate  = "tg"
)

// MetricDef describes one tracked metric.
type MetricDef struct {
	Name      string
	Strategy  Strategy
	Mandatory bool
	// Daily is false for metrics that only collaborators feed.
	Daily bool
}

// Metrics is the ordered metric table. Output maps and reports follow this order.
var Metrics = []MetricDef{
	{Name: Workforce, Strategy: StrategyMax, Mandatory: true, Daily: true},
	{Name: HoursWorked, Strategy: StrategySum, Mandatory: true, Daily: true},
	{Name: Inductions, Strategy: StrategySum, Mandatory: true, Daily: true},
	{Name: Inspections, Strategy: StrategySum, Daily: true},
	{Name: TrainingHours, Strategy: StrategySum, Daily: true},
	{Name: WorkPermits, Strategy: StrategySum, Daily: true},
	{Name: DisciplinaryActions, Strategy: StrategySum, Daily: true},
	{Name: LostWorkdays, Strategy: StrategySum, Mandatory: true, Daily: true},
	{Name: Accidents, Strategy: StrategySum, Mandatory: true, Daily: true},
	{Name: NearMisses, Strategy: StrategySum, Daily: true},
	{Name: FirstAidCases, Strategy: StrategySum, Daily: true},
	{Name: WaterConsumption, Strategy: StrategySum, Daily: true},
	{Name: ElectricityConsumption, Strategy: StrategySum, Daily: true},
	{Name: Deviations, Strategy: StrategySum},
	{Name: HSEComplianceRate, Strategy: StrategyAvg, Daily: true},
	{Name: MedicalComplianceRate, Strategy: StrategyAvg, Daily: true},
	{Name: NoiseLevel, Strategy: StrategyAvg, Daily: true},
}

var metricIndex = func() map[string]MetricDef {
	m := make(map[string]MetricDef, len(Metrics))
	for _, def := range Metrics {
		m[def.Name] = def
	}
	return m
}()

// Lookup returns the definition of a metric by name.
func Lookup(name string) (MetricDef, bool) {
	def, ok := metricIndex[name]
	return def, ok
}

// MandatoryMetrics lists the metrics that must be populated before a report is submitted.
func MandatoryMetrics() []string {
	var out []string
	for _, def := range Metrics {
		if def.Mandatory {
			out = append(out, def.Name)
		}
	}
	return out
}

// AvgMetrics lists the averaged metrics.
func AvgMetrics() []string {
	var out []string
	for _, def := range Metrics {
		if def.Strategy == StrategyAvg {
			out = append(out, def.Name)
		}
	}
	return out
}

package domain

// Observation is one (entity, date) row of the epidemiological time series.
// Measure fields are pointers so that empty CSV cells decode to nil and can be
// told apart from a reported zero.
type Observation struct {
	ISOCode   string `csv:"iso_code"`
	Continent string `csv:"continent"`
	Location  string `csv:"location"`
	Date      string `csv:"date"`

	Population *float64 `csv:"population"`

	TotalCases        *float64 `csv:"total_cases"`
	NewCases          *float64 `csv:"new_cases"`
	NewCasesSmoothed  *float64 `csv:"new_cases_smoothed"`
	TotalDeaths       *float64 `csv:"total_deaths"`
	NewDeaths         *float64 `csv:"new_deaths"`
	NewDeathsSmoothed *float64 `csv:"new_deaths_smoothed"`
	ReproductionRate  *float64 `csv:"reproduction_rate"`

	ICUPatients          *float64 `csv:"icu_patients"`
	HospPatients         *float64 `csv:"hosp_patients"`
	WeeklyICUAdmissions  *float64 `csv:"weekly_icu_admissions"`
	WeeklyHospAdmissions *float64 `csv:"weekly_hosp_admissions"`

	TotalTests       *float64 `csv:"total_tests"`
	NewTests         *float64 `csv:"new_tests"`
	NewTestsSmoothed *float64 `csv:"new_tests_smoothed"`
	PositiveRate     *float64 `csv:"positive_rate"`

	TotalVaccinations       *float64 `csv:"total_vaccinations"`
	PeopleVaccinated        *float64 `csv:"people_vaccinated"`
	PeopleFullyVaccinated   *float64 `csv:"people_fully_vaccinated"`
	TotalBoosters           *float64 `csv:"total_boosters"`
	NewVaccinations         *float64 `csv:"new_vaccinations"`
	NewVaccinationsSmoothed *float64 `csv:"new_vaccinations_smoothed"`

	StringencyIndex         *float64 `csv:"stringency_index"`
	PopulationDensity       *float64 `csv:"population_density"`
	MedianAge               *float64 `csv:"median_age"`
	Aged65Older             *float64 `csv:"aged_65_older"`
	Aged70Older             *float64 `csv:"aged_70_older"`
	GDPPerCapita            *float64 `csv:"gdp_per_capita"`
	CardiovascDeathRate     *float64 `csv:"cardiovasc_death_rate"`
	DiabetesPrevalence      *float64 `csv:"diabetes_prevalence"`
	FemaleSmokers           *float64 `csv:"female_smokers"`
	MaleSmokers             *float64 `csv:"male_smokers"`
	HospitalBedsPerThousand *float64 `csv:"hospital_beds_per_thousand"`
	LifeExpectancy          *float64 `csv:"life_expectancy"`
	HumanDevelopmentIndex   *float64 `csv:"human_development_index"`
}

// ObservationMeasure names a numeric Observation field and reads it.
type ObservationMeasure struct {
	Column string
	Get    func(*Observation) *float64
}

// ObservationMeasures lists every numeric column of Observation in file order.
var ObservationMeasures = []ObservationMeasure{
	{ColPopulation, func(o *Observation) *float64 { return o.Population }},
	{"total_cases", func(o *Observation) *float64 { return o.TotalCases }},
	{"new_cases", func(o *Observation) *float64 { return o.NewCases }},
	{"new_cases_smoothed", func(o *Observation) *float64 { return o.NewCasesSmoothed }},
	{ColTotalDeaths, func(o *Observation) *float64 { return o.TotalDeaths }},
	{"new_deaths", func(o *Observation) *float64 { return o.NewDeaths }},
	{ColNewDeathsSmoothed, func(o *Observation) *float64 { return o.NewDeathsSmoothed }},
	{ColReproductionRate, func(o *Observation) *float64 { return o.ReproductionRate }},
	{"icu_patients", func(o *Observation) *float64 { return o.ICUPatients }},
	{"hosp_patients", func(o *Observation) *float64 { return o.HospPatients }},
	{"weekly_icu_admissions", func(o *Observation) *float64 { return o.WeeklyICUAdmissions }},
	{"weekly_hosp_admissions", func(o *Observation) *float64 { return o.WeeklyHospAdmissions }},
	{"total_tests", func(o *Observation) *float64 { return o.TotalTests }},
	{"new_tests", func(o *Observation) *float64 { return o.NewTests }},
	{ColNewTestsSmoothed, func(o *Observation) *float64 { return o.NewTestsSmoothed }},
	{ColPositiveRate, func(o *Observation) *float64 { return o.PositiveRate }},
	{"total_vaccinations", func(o *Observation) *float64 { return o.TotalVaccinations }},
	{"people_vaccinated", func(o *Observation) *float64 { return o.PeopleVaccinated }},
	{"people_fully_vaccinated", func(o *Observation) *float64 { return o.PeopleFullyVaccinated }},
	{"total_boosters", func(o *Observation) *float64 { return o.TotalBoosters }},
	{"new_vaccinations", func(o *Observation) *float64 { return o.NewVaccinations }},
	{"new_vaccinations_smoothed", func(o *Observation) *float64 { return o.NewVaccinationsSmoothed }},
	{"stringency_index", func(o *Observation) *float64 { return o.StringencyIndex }},
	{"population_density", func(o *Observation) *float64 { return o.PopulationDensity }},
	{"median_age", func(o *Observation) *float64 { return o.MedianAge }},
	{"aged_65_older", func(o *Observation) *float64 { return o.Aged65Older }},
	{"aged_70_older", func(o *Observation) *float64 { return o.Aged70Older }},
	{"gdp_per_capita", func(o *Observation) *float64 { return o.GDPPerCapita }},
	{ColCardiovascDeathRate, func(o *Observation) *float64 { return o.CardiovascDeathRate }},
	{"diabetes_prevalence", func(o *Observation) *float64 { return o.DiabetesPrevalence }},
	{ColFemaleSmokers, func(o *Observation) *float64 { return o.FemaleSmokers }},
	{ColMaleSmokers, func(o *Observation) *float64 { return o.MaleSmokers }},
	{"hospital_beds_per_thousand", func(o *Observation) *float64 { return o.HospitalBedsPerThousand }},
	{"life_expectancy", func(o *Observation) *float64 { return o.LifeExpectancy }},
	{"human_development_index", func(o *Observation) *float64 { return o.HumanDevelopmentIndex }},
}

// Column names referenced by the pipeline stages.
const (
	ColContinent = "continent"
	ColLocation  = "location"

	ColPopulation          = "population"
	ColTotalDeaths         = "total_deaths"
	ColNewDeathsSmoothed   = "new_deaths_smoothed"
	ColReproductionRate    = "reproduction_rate"
	ColNewTestsSmoothed    = "new_tests_smoothed"
	ColPositiveRate        = "positive_rate"
	ColCardiovascDeathRate = "cardiovasc_death_rate"
	ColFemaleSmokers       = "female_smokers"
	ColMaleSmokers         = "male_smokers"

	ColLaggedDeaths = "lagged_deaths_2wk"

	ColTotalCardiovascDeaths    = "total_cardiovasc_deaths"
	ColTotalReproduction        = "total_reproduction"
	ColNewPositiveTestsSmoothed = "new_positive_tests_smoothed"
	ColTotalSmokers             = "total_smokers"
	ColTotalUrbanPopulation     = "total_urban_population"
	ColTotalPopulationOver80    = "total_population_over_80"
	ColAgeDependencyRatio       = "age_dependency_ratio"
)

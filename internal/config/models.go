package config

import "covidlag/pkg/contracts/domain"

// DefaultModels returns the built-in regression specifications. Response is
// left empty so that the struct default applies.
func DefaultModels() []domain.ModelSpec {
	return []domain.ModelSpec{
		{
			Name:        "cases",
			Description: "case load, testing and transmission",
			Predictors: []string{
				"new_cases_smoothed",
				"total_cases",
				domain.ColNewPositiveTestsSmoothed,
				domain.ColTotalReproduction,
			},
		},
		{
			Name:        "hospitals",
			Description: "hospital and ICU occupancy",
			Predictors: []string{
				"icu_patients",
				"hosp_patients",
				"weekly_hosp_admissions",
			},
		},
		{
			Name:        "age_demographics",
			Description: "age structure and cardiovascular burden",
			Predictors: []string{
				"aged_65_older",
				"aged_70_older",
				domain.ColTotalPopulationOver80,
				domain.ColTotalCardiovascDeaths,
				domain.ColAgeDependencyRatio,
			},
		},
		{
			Name:        "vaccines",
			Description: "vaccination coverage",
			Predictors: []string{
				"people_fully_vaccinated",
				"total_boosters",
				"new_vaccinations_smoothed",
			},
		},
		{
			Name:        "living",
			Description: "living conditions and health system capacity",
			Predictors: []string{
				domain.ColTotalSmokers,
				domain.ColTotalUrbanPopulation,
				"gdp_per_capita",
				"hospital_beds_per_thousand",
				"population_density",
			},
		},
	}
}

// DefaultScatterPlots returns the x:y column pairs plotted from the snapshot date.
func DefaultScatterPlots() []string {
	return []string{
		domain.ColTotalPopulationOver80 + ":" + domain.ColTotalDeaths,
		"people_fully_vaccinated:" + domain.ColTotalDeaths,
	}
}

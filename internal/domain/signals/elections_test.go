package signals

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/predmatch/predmatch/internal/domain/model"
)

func TestExtractElectionsUSPresidential(t *testing.T) {
	m := &model.Market{Title: "2024 US Presidential Election Winner"}
	sig := ExtractElections(m)

	assert.Equal(t, CountryUS, sig.Country)
	assert.Equal(t, OfficePresident, sig.Office)
	assert.Equal(t, 2024, sig.Year)
	assert.Equal(t, IntentWinner, sig.Intent)
	assert.Equal(t, "US|PRESIDENT|2024", sig.RaceKeyString())
}

func TestExtractElectionsForeignCountryWins(t *testing.T) {
	m := &model.Market{Title: "Malaysia 2024 General Election Winner"}
	sig := ExtractElections(m)
	assert.Equal(t, CountryMalaysia, sig.Country)

	m = &model.Market{Title: "Will Labour win the UK general election in 2029?"}
	sig = ExtractElections(m)
	assert.Equal(t, CountryUK, sig.Country)
	assert.Equal(t, "LABOUR", sig.Party)
}

func TestExtractElectionsState(t *testing.T) {
	m := &model.Market{Title: "Pennsylvania Senate race winner 2026"}
	sig := ExtractElections(m)
	assert.Equal(t, CountryUS, sig.Country)
	assert.Equal(t, OfficeSenate, sig.Office)
	assert.Equal(t, "PA", sig.State)
	assert.Equal(t, "US|SENATE|2026|PA", sig.RaceKeyString())
}

func TestExtractElectionsCandidates(t *testing.T) {
	m := &model.Market{Title: "Will Donald Trump beat Kamala Harris in 2024?"}
	sig := ExtractElections(m)
	assert.Equal(t, []string{"harris", "trump"}, sig.Candidates)

	// Aliases fold onto the same canonical name.
	m = &model.Market{Title: "DJT wins the 2024 election"}
	sig = ExtractElections(m)
	assert.Equal(t, []string{"trump"}, sig.Candidates)
}

func TestExtractElectionsIntents(t *testing.T) {
	cases := []struct {
		title string
		want  ElectionIntent
	}{
		{"2024 Presidential Election Winner", IntentWinner},
		{"Trump wins popular vote by more than 5 points", IntentMargin},
		{"Voter turnout above 60% in 2024", IntentTurnout},
		{"Republicans control the Senate after 2026", IntentPartyControl},
		{"Democratic Presidential Nominee 2028", IntentNominee},
	}
	for _, tc := range cases {
		sig := ExtractElections(&model.Market{Title: tc.title})
		assert.Equal(t, tc.want, sig.Intent, tc.title)
	}
}

func TestOfficesCompatible(t *testing.T) {
	assert.True(t, OfficesCompatible(OfficeHouse, OfficePartyControl))
	assert.True(t, OfficesCompatible(OfficePartyControl, OfficeSenate))
	assert.True(t, OfficesCompatible(OfficePresident, OfficePresident))
	assert.False(t, OfficesCompatible(OfficePresident, OfficeSenate))
	assert.False(t, OfficesCompatible(OfficeGovernor, OfficePartyControl))
}

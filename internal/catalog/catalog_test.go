package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	svc, err := Lookup("Общий анализ мочи")
	require.NoError(t, err)
	assert.Equal(t, int64(190), svc.Price)
	assert.True(t, svc.NeedsDemographics)

	svc, err = Lookup("УЗИ")
	require.NoError(t, err)
	assert.Equal(t, int64(390), svc.Price)
	assert.False(t, svc.NeedsDemographics)

	svc, err = Lookup("Биохимия крови")
	require.NoError(t, err)
	assert.Equal(t, int64(290), svc.Price)
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("Хиромантия")
	assert.Error(t, err)
}

func TestAll(t *testing.T) {
	all := All()
	assert.Len(t, all, 20)

	for _, svc := range all {
		assert.NotEmpty(t, svc.Name)
		assert.Positive(t, svc.Price)
		assert.NotEmpty(t, svc.Category)
	}
}

func TestDemographicsOnlyForLabWork(t *testing.T) {
	for _, svc := range All() {
		if svc.NeedsDemographics {
			assert.Equal(t, "Анализы", svc.Category, svc.Name)
		}
	}
}

package thresholds

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
)

func TestDefaults(t *testing.T) {
	d := Defaults()
	require.Len(t, d, len(core.Categories()))
	for _, c := range core.Categories() {
		assert.Equal(t, float64(Default), d[c], c.String())
	}
}

func TestSnap(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0, 0},
		{149, 100},
		{150, 200},
		{-500, 0},
		{50049, 50000},
		{99999, 50000},
		{math.NaN(), Default},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Snap(tc.in), "Snap(%v)", tc.in)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thresholds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`thresholds:
  Grocery: 5000
  fixed expense: 25049
  Hotel: 70000
`), 0o644))

	limits, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, limits[core.Grocery])
	assert.Equal(t, 25000.0, limits[core.FixedExpense])
	assert.Equal(t, 50000.0, limits[core.Hotel])
	assert.Equal(t, float64(Default), limits[core.Travel])
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("thresholds: [1, 2"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)

	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("thresholds:\n  Rent: 100\n"), 0o644))
	_, err = Load(unknown)
	assert.ErrorIs(t, err, core.ErrInvalidCategory)

	limits, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), limits)
}

func TestEvaluate(t *testing.T) {
	totals := map[core.Category]float64{
		core.Grocery: 150,
		core.Travel:  200,
	}
	limits := Defaults().With(core.Grocery, 100).With(core.Charity, 0)

	statuses := Evaluate(totals, limits)
	require.Len(t, statuses, len(core.Categories()))

	byCategory := map[core.Category]Status{}
	for _, s := range statuses {
		byCategory[s.Category] = s
	}

	assert.True(t, byCategory[core.Grocery].Exceeded)
	assert.False(t, byCategory[core.Travel].Exceeded)

	// no expenses means zero spent, and zero is not over a zero limit
	assert.Equal(t, 0.0, byCategory[core.Charity].Total)
	assert.False(t, byCategory[core.Charity].Exceeded)

	exceeded := Exceeded(statuses)
	require.Len(t, exceeded, 1)
	assert.Equal(t, core.Grocery, exceeded[0].Category)
	assert.Equal(t,
		"You have exceeded the threshold for Grocery! You spent ₹150.00, which is over the set threshold of ₹100.00.",
		exceeded[0].Warning())
	assert.Equal(t, "Travel: ₹200.00 / ₹10000.00", byCategory[core.Travel].Summary())
	assert.Empty(t, byCategory[core.Travel].Warning())
}

func TestWithDoesNotMutate(t *testing.T) {
	base := Defaults()
	changed := base.With(core.Fuel, 300)
	assert.Equal(t, float64(Default), base[core.Fuel])
	assert.Equal(t, 300.0, changed[core.Fuel])
}

func TestSummarizeOnlyPresentCategories(t *testing.T) {
	totals := map[core.Category]float64{
		core.Hotel:   12000,
		core.Grocery: 150,
		"Snacks":     5,
	}

	got := Summarize(totals, Defaults())
	require.Len(t, got, 3)
	assert.Equal(t, core.Grocery, got[0].Category)
	assert.False(t, got[0].Exceeded)
	assert.Equal(t, core.Hotel, got[1].Category)
	assert.True(t, got[1].Exceeded)

	// unknown labels have no limit, so any spend breaches it
	assert.Equal(t, core.Category("Snacks"), got[2].Category)
	assert.Zero(t, got[2].Limit)
	assert.True(t, got[2].Exceeded)
}

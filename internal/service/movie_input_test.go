package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinevault/internal/apperr"
)

func str(s string) *string { return &s }

func validFields() MovieFields {
	return MovieFields{
		Title:       str(" Inception "),
		Description: str("A thief who steals corporate secrets."),
		PosterURL:   str("https://image.tmdb.org/t/p/w500/inception.jpg"),
		Rating:      str("8.8"),
		ReleaseDate: str("2010-07-16"),
		Duration:    str("148"),
		Genre:       []string{"Sci-Fi, Thriller", "sci-fi"},
	}
}

func validationMessage(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	ae := apperr.From(err)
	require.Equal(t, apperr.KindValidation, ae.Kind)
	return ae.Message
}

func TestValidateCreateHappyPath(t *testing.T) {
	m, err := ValidateCreate(validFields(), false)
	require.NoError(t, err)
	assert.Equal(t, "Inception", m.Title)
	assert.Equal(t, 8.8, m.Rating)
	assert.Equal(t, 148, m.Duration)
	assert.Equal(t, "2010-07-16", m.ReleaseDate.String())
	assert.Equal(t, []string{"Sci-Fi", "Thriller"}, m.Genre)
	assert.Equal(t, "https://image.tmdb.org/t/p/w500/inception.jpg", m.PosterURL)
}

func TestValidateCreateOrder(t *testing.T) {
	// Each case breaks several fields; the earliest check must win.
	tests := []struct {
		name   string
		mutate func(f *MovieFields)
		file   bool
		want   string
	}{
		{"required before poster", func(f *MovieFields) { f.Title = nil; f.PosterURL = nil }, false, msgRequired},
		{"whitespace counts as missing", func(f *MovieFields) { f.Duration = str("  ") }, false, msgRequired},
		{"poster before rating", func(f *MovieFields) { f.PosterURL = nil; f.Rating = str("11") }, false, msgPoster},
		{"rating before duration", func(f *MovieFields) { f.Rating = str("abc"); f.Duration = str("-1") }, false, msgRating},
		{"duration before date", func(f *MovieFields) { f.Duration = str("0"); f.ReleaseDate = str("soon") }, false, msgDuration},
		{"date last", func(f *MovieFields) { f.ReleaseDate = str("2010-13-40") }, false, msgReleaseDate},
		{"bad poster url", func(f *MovieFields) { f.PosterURL = str("ftp://x/y.jpg") }, false, msgPosterURL},
		{"file satisfies poster", func(f *MovieFields) { f.PosterURL = nil; f.Rating = str("-0.1") }, true, msgRating},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validFields()
			tt.mutate(&f)
			_, err := ValidateCreate(f, tt.file)
			assert.Equal(t, tt.want, validationMessage(t, err))
		})
	}
}

func TestValidateCreateIsIdempotent(t *testing.T) {
	f := validFields()
	f.Rating = str("10.5")
	_, err1 := ValidateCreate(f, false)
	_, err2 := ValidateCreate(f, false)
	assert.Equal(t, err1, err2)
}

func TestValidateCreateListsMissing(t *testing.T) {
	_, err := ValidateCreate(MovieFields{Title: str("x")}, true)
	ae := apperr.From(err)
	assert.ElementsMatch(t, []string{"rating is required", "releaseDate is required", "duration is required"}, ae.Errors)
}

func TestValidateCreateFileWinsOverURL(t *testing.T) {
	m, err := ValidateCreate(validFields(), true)
	require.NoError(t, err)
	assert.Empty(t, m.PosterURL)
}

func TestValidatePatch(t *testing.T) {
	p, err := ValidatePatch(MovieFields{Rating: str("7"), Genre: []string{"Drama,"}}, false)
	require.NoError(t, err)
	require.NotNil(t, p.Rating)
	assert.Equal(t, 7.0, *p.Rating)
	assert.Equal(t, []string{"Drama"}, p.Genre)
	assert.Nil(t, p.Title)

	_, err = ValidatePatch(MovieFields{}, false)
	assert.Equal(t, msgEmptyPatch, validationMessage(t, err))

	p, err = ValidatePatch(MovieFields{}, true)
	require.NoError(t, err)
	assert.True(t, p.Empty())

	_, err = ValidatePatch(MovieFields{Title: str("   ")}, false)
	assert.Equal(t, msgTitle, validationMessage(t, err))

	_, err = ValidatePatch(MovieFields{Duration: str("1.5")}, false)
	assert.Equal(t, msgDuration, validationMessage(t, err))
}

func TestNormalizeGenre(t *testing.T) {
	assert.Equal(t, []string{}, NormalizeGenre(nil))
	assert.Equal(t, []string{"Action", "Drama"}, NormalizeGenre([]string{"Action, drama", " ", "ACTION", "Drama"}))
}

func TestParseReleaseDateRFC3339(t *testing.T) {
	d, err := ParseReleaseDate("2010-07-16T23:30:00-02:00")
	require.NoError(t, err)
	assert.Equal(t, "2010-07-17", d.String())
}

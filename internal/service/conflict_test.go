package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/gym-booking/internal/model"
	tf "github.com/iliyamo/gym-booking/internal/testfixtures"
)

func TestOverlaps(t *testing.T) {
	at := tf.At
	cases := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd string
		want                       bool
	}{
		{"partial overlap", "2024-01-10T10:00:00Z", "2024-01-10T11:00:00Z", "2024-01-10T10:30:00Z", "2024-01-10T11:30:00Z", true},
		{"identical", "2024-01-10T10:00:00Z", "2024-01-10T11:00:00Z", "2024-01-10T10:00:00Z", "2024-01-10T11:00:00Z", true},
		{"contained", "2024-01-10T09:00:00Z", "2024-01-10T12:00:00Z", "2024-01-10T10:00:00Z", "2024-01-10T11:00:00Z", true},
		{"touching end to start", "2024-01-10T10:00:00Z", "2024-01-10T11:00:00Z", "2024-01-10T11:00:00Z", "2024-01-10T12:00:00Z", false},
		{"disjoint", "2024-01-10T08:00:00Z", "2024-01-10T09:00:00Z", "2024-01-10T10:00:00Z", "2024-01-10T11:00:00Z", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Overlaps(at(tc.aStart), at(tc.aEnd), at(tc.bStart), at(tc.bEnd))
			reverse := Overlaps(at(tc.bStart), at(tc.bEnd), at(tc.aStart), at(tc.aEnd))
			assert.Equal(t, tc.want, got)
			assert.Equal(t, got, reverse, "overlap must be symmetric")
		})
	}
}

func TestFindConflicts(t *testing.T) {
	existing := []model.Booking{
		tf.Booking("b1", "r1", "2024-01-10T10:00:00Z", "2024-01-10T11:00:00Z"),
		tf.Cancelled(tf.Booking("b2", "r1", "2024-01-10T10:00:00Z", "2024-01-10T11:00:00Z")),
		tf.Booking("b3", "r2", "2024-01-10T10:00:00Z", "2024-01-10T11:00:00Z"),
		tf.Booking("b4", "r1", "2024-01-10T11:00:00Z", "2024-01-10T12:00:00Z"),
	}
	cand := Candidate{ResourceID: "r1", StartTime: tf.At("2024-01-10T10:30:00Z"), EndTime: tf.At("2024-01-10T11:30:00Z")}

	t.Run("reports active overlaps on the same resource", func(t *testing.T) {
		hits := FindConflicts(existing, cand, Exclusion{})
		ids := make([]string, 0, len(hits))
		for _, b := range hits {
			ids = append(ids, b.ID)
		}
		assert.ElementsMatch(t, []string{"b1", "b4"}, ids)
		assert.True(t, HasConflict(existing, cand, Exclusion{}))
	})

	t.Run("excludes the booking being edited", func(t *testing.T) {
		hits := FindConflicts(existing, cand, Exclusion{ID: "b1"})
		assert.Len(t, hits, 1)
		assert.Equal(t, "b4", hits[0].ID)
	})

	t.Run("cancelled bookings never conflict", func(t *testing.T) {
		only := []model.Booking{existing[1]}
		assert.False(t, HasConflict(only, cand, Exclusion{}))
	})

	t.Run("other resources never conflict", func(t *testing.T) {
		c := cand
		c.ResourceID = "r3"
		assert.Empty(t, FindConflicts(existing, c, Exclusion{}))
	})
}

func TestFindConflictsSeriesExclusion(t *testing.T) {
	root := tf.Booking("weekly-yoga", "r1", "2024-01-10T10:00:00Z", "2024-01-10T11:00:00Z")
	instance := tf.InSeries(tf.Booking("yoga-2", "r1", "2024-01-10T10:00:00Z", "2024-01-10T11:00:00Z"), "weekly-yoga")
	sibling := tf.InSeries(tf.Booking("yoga-3", "r1", "2024-01-10T10:15:00Z", "2024-01-10T11:15:00Z"), "weekly-yoga")
	stranger := tf.Booking("pilates", "r1", "2024-01-10T10:45:00Z", "2024-01-10T11:45:00Z")
	existing := []model.Booking{root, instance, sibling, stranger}

	cand := Candidate{ResourceID: "r1", StartTime: tf.At("2024-01-10T10:00:00Z"), EndTime: tf.At("2024-01-10T11:00:00Z")}

	t.Run("editing an instance skips its series", func(t *testing.T) {
		hits := FindConflicts(existing, cand, Exclusion{ID: "yoga-2", SeriesID: "weekly-yoga"})
		assert.Len(t, hits, 1)
		assert.Equal(t, "pilates", hits[0].ID)
	})

	t.Run("editing the series root skips its instances", func(t *testing.T) {
		hits := FindConflicts(existing, cand, Exclusion{ID: "weekly-yoga"})
		assert.Len(t, hits, 1)
		assert.Equal(t, "pilates", hits[0].ID)
	})

	t.Run("an id sharing a prefix is not part of the series", func(t *testing.T) {
		lookalike := tf.Booking("weekly-yoga_extra", "r1", "2024-01-10T10:00:00Z", "2024-01-10T11:00:00Z")
		hits := FindConflicts([]model.Booking{lookalike}, cand, Exclusion{ID: "weekly-yoga"})
		assert.Len(t, hits, 1)
	})
}

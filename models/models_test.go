package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestModuleFor(t *testing.T) {
	counts := map[Module]int{}
	for _, rt := range AllRecordTypes() {
		m, ok := ModuleFor(rt)
		assert.True(t, ok, rt)
		assert.True(t, m.IsValid(), rt)
		counts[m]++
	}
	assert.Equal(t, map[Module]int{ModuleHealth: 8, ModuleEducation: 7, ModuleSocialJustice: 7}, counts)

	m, _ := ModuleFor(RecordTypeWidowPension)
	assert.Equal(t, ModuleSocialJustice, m)

	_, ok := ModuleFor("Unknown")
	assert.False(t, ok)
	assert.False(t, RecordType("elderly").IsValid(), "record types are case sensitive")
}

func TestStatusHelpers(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusOnHold.IsTerminal())
	assert.True(t, StatusInProgress.IsValid())
	assert.False(t, FollowUpStatus("in progress").IsValid())
	assert.False(t, FollowUpPriority("Critical").IsValid())
}

func TestFollowUpRecordCloneIsDeep(t *testing.T) {
	orig := &FollowUpRecord{
		Tags: []string{"a"},
		MonthlyUpdates: []MonthlyUpdate{
			{Notes: "first", Attachments: []Attachment{{Name: "photo.jpg"}}},
		},
	}
	cp := orig.Clone()
	cp.Tags[0] = "changed"
	cp.MonthlyUpdates[0].Notes = "changed"
	cp.MonthlyUpdates[0].Attachments[0].Name = "changed"
	cp.MonthlyUpdates = append(cp.MonthlyUpdates, MonthlyUpdate{Notes: "second"})

	assert.Equal(t, "a", orig.Tags[0])
	assert.Equal(t, "first", orig.MonthlyUpdates[0].Notes)
	assert.Equal(t, "photo.jpg", orig.MonthlyUpdates[0].Attachments[0].Name)
	assert.Len(t, orig.MonthlyUpdates, 1)
}

func TestDomainRecordAccessors(t *testing.T) {
	oid := primitive.NewObjectID()
	doc := DomainRecord{
		"_id":        oid,
		"name":       "  Asha  ",
		"wardNo":     12,
		"tags":       primitive.A{"bpl", 3, "widow"},
		"habitation": "Hill Top",
	}
	assert.Equal(t, oid.Hex(), doc.ID())
	assert.Equal(t, "Asha", doc.String("name"))
	assert.Equal(t, "12", doc.String("wardNo"))
	assert.Equal(t, "", doc.String("missing"))
	assert.Equal(t, []string{"bpl", "widow"}, doc.Strings("tags"))

	c := doc.Classification()
	assert.Equal(t, "12", c.WardNo)
	assert.Equal(t, "Hill Top", c.Habitation)
	assert.Equal(t, []string{"bpl", "widow"}, c.Tags)

	assert.Equal(t, "plain-id", DomainRecord{"id": "plain-id"}.ID())
	assert.Equal(t, "", DomainRecord{"_id": primitive.NilObjectID}.ID())
	assert.Equal(t, "42", DomainRecord{"_id": 42}.ID())
}

func TestDomainRecordCloneIsDeep(t *testing.T) {
	doc := DomainRecord{
		"name":    "Asha",
		"tags":    []interface{}{"bpl"},
		"aliases": primitive.A{"A"},
		"address": map[string]interface{}{"ward": "12", "lines": []string{"Hill Top"}},
	}
	cp := doc.Clone()

	doc["tags"].([]interface{})[0] = "changed"
	doc["aliases"].(primitive.A)[0] = "changed"
	doc["address"].(map[string]interface{})["ward"] = "99"
	doc["address"].(map[string]interface{})["lines"].([]string)[0] = "changed"
	doc["name"] = "changed"

	assert.Equal(t, []string{"bpl"}, cp.Strings("tags"))
	assert.Equal(t, []string{"A"}, cp.Strings("aliases"))
	assert.Equal(t, "Asha", cp.String("name"))
	addr := cp["address"].(map[string]interface{})
	assert.Equal(t, "12", addr["ward"])
	assert.Equal(t, []string{"Hill Top"}, addr["lines"])
	assert.Nil(t, DomainRecord(nil).Clone())
}

func TestPriorityRank(t *testing.T) {
	assert.Less(t, PriorityLow.Rank(), PriorityMedium.Rank())
	assert.Less(t, PriorityMedium.Rank(), PriorityHigh.Rank())
	assert.Less(t, PriorityHigh.Rank(), PriorityUrgent.Rank())
	assert.Zero(t, FollowUpPriority("Critical").Rank())
}

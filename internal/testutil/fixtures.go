// Package testutil provides shared fixtures for pipeline tests: sample
// source documents in the shape the document source emits, and their
// normalized RAW-layer counterparts.
package testutil

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"mallard/pkg/models"
)

// OID parses a hex object identifier, panicking on malformed input. Test
// fixtures only.
func OID(hex string) bson.ObjectID {
	id, err := bson.ObjectIDFromHex(hex)
	if err != nil {
		panic(err)
	}
	return id
}

// Date returns a BSON datetime at UTC midnight of the given day.
func Date(year int, month time.Month, day int) bson.DateTime {
	return bson.NewDateTimeFromTime(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// Day returns the normalized calendar-date value for the given day.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// SampleRestaurantDoc returns one complete source document in driver shape.
func SampleRestaurantDoc() bson.D {
	return bson.D{
		{Key: "_id", Value: OID("5eb3d668b31de5d588f42930")},
		{Key: "address", Value: bson.D{
			{Key: "building", Value: "2780"},
			{Key: "coord", Value: bson.A{-73.98241999999999, 40.579505}},
			{Key: "street", Value: "Stillwell Avenue"},
			{Key: "zipcode", Value: "11224"},
		}},
		{Key: "borough", Value: "Brooklyn"},
		{Key: "cuisine", Value: "American"},
		{Key: "grades", Value: bson.A{
			bson.D{
				{Key: "date", Value: Date(2014, time.June, 10)},
				{Key: "grade", Value: "A"},
				{Key: "score", Value: int32(5)},
			},
			bson.D{
				{Key: "date", Value: Date(2013, time.June, 5)},
				{Key: "grade", Value: "A"},
				{Key: "score", Value: int32(7)},
			},
		}},
		{Key: "name", Value: "Riviera Caterer"},
		{Key: "restaurant_id", Value: "40356018"},
	}
}

// SampleRestaurantDocs returns a small corpus covering the interesting
// shapes: multiple grades, a single grade, and an empty grades sequence.
func SampleRestaurantDocs() []bson.D {
	return []bson.D{
		SampleRestaurantDoc(),
		{
			{Key: "_id", Value: OID("5eb3d668b31de5d588f42931")},
			{Key: "address", Value: bson.D{
				{Key: "building", Value: "7114"},
				{Key: "coord", Value: bson.A{-73.9068506, 40.6199034}},
				{Key: "street", Value: "Avenue U"},
				{Key: "zipcode", Value: "11234"},
			}},
			{Key: "borough", Value: "Brooklyn"},
			{Key: "cuisine", Value: "Delicatessen"},
			{Key: "grades", Value: bson.A{
				bson.D{
					{Key: "date", Value: Date(2014, time.May, 29)},
					{Key: "grade", Value: "A"},
					{Key: "score", Value: int32(10)},
				},
			}},
			{Key: "name", Value: "Wilken'S Fine Food"},
			{Key: "restaurant_id", Value: "40356483"},
		},
		{
			{Key: "_id", Value: OID("5eb3d668b31de5d588f42932")},
			{Key: "borough", Value: "Bronx"},
			{Key: "cuisine", Value: "Italian"},
			{Key: "grades", Value: bson.A{}},
			{Key: "name", Value: "Emilio'S"},
			{Key: "restaurant_id", Value: "40357990"},
		},
	}
}

// SampleRawRecords returns normalized RAW records for aggregation and
// flatten tests, matching the grouping scenarios used across the suite.
func SampleRawRecords() []models.Record {
	grades := func(scores ...int32) []interface{} {
		out := make([]interface{}, len(scores))
		for i, s := range scores {
			out[i] = models.Record{
				"date":  Day(2014, time.June, 10),
				"grade": "A",
				"score": s,
			}
		}
		return out
	}

	return []models.Record{
		{"id": "a1", "address": nil, "borough": "Bronx", "cuisine": "Italian", "grades": grades(5, 7), "name": "A", "restaurant_id": "1"},
		{"id": "b1", "address": nil, "borough": "Bronx", "cuisine": "Chinese", "grades": grades(10), "name": "B", "restaurant_id": "2"},
		{"id": "c1", "address": nil, "borough": "Bronx", "cuisine": "Italian", "grades": grades(), "name": "C", "restaurant_id": "3"},
		{"id": "d1", "address": nil, "borough": "Bronx", "cuisine": "Italian", "grades": nil, "name": "D", "restaurant_id": "4"},
	}
}

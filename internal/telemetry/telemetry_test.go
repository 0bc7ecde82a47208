package telemetry

import (
	"context"
	"testing"
)

func TestSchemaFor(t *testing.T) {
	for _, family := range Families {
		schema, err := SchemaFor(family)
		if err != nil {
			t.Errorf("SchemaFor(%q) returned error: %v", family, err)
			continue
		}
		if schema.Topic == "" {
			t.Errorf("Family %q has no topic", family)
		}
		if len(schema.Fields) == 0 {
			t.Errorf("Family %q has no fields", family)
		}
	}
}

func TestSchemaForUnknownFamily(t *testing.T) {
	_, err := SchemaFor(Family("frobnicator"))
	if err == nil {
		t.Error("Expected error for unknown family")
	}
}

func TestSchemaItemsAreDescribed(t *testing.T) {
	for _, family := range Families {
		if family == FamilyRaritan {
			// Raritan items are discovered from the device, not listed here.
			continue
		}
		schema, _ := SchemaFor(family)
		for _, field := range schema.Fields {
			if _, ok := Items[field.Item]; !ok {
				t.Errorf("Family %q field %q references undescribed item %q",
					family, field.Name, field.Item)
			}
		}
	}
}

func TestFieldMultiple(t *testing.T) {
	scalar := Field{Name: "acCurrentDraw", Item: "currentDrawStatus1", Len: 1}
	if scalar.Multiple() {
		t.Error("Expected scalar field to not be multiple")
	}
	array := Field{Name: "powerOutletStatus", Item: "outletStatus", Len: 8}
	if !array.Multiple() {
		t.Error("Expected array field to be multiple")
	}
}

func TestRecorderCapturesPublishes(t *testing.T) {
	recorder := NewRecorder()
	ctx := context.Background()

	rec := Record{"totalActivePower": 1500.0}
	if err := recorder.Publish(ctx, "epm_schneiderPm5xxx", rec); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if err := recorder.Publish(ctx, TopicTemperature, Record{"temperatureItem": []any{21.5}}); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	pubs := recorder.Publications()
	if len(pubs) != 2 {
		t.Fatalf("Expected 2 publications, got %d", len(pubs))
	}
	if pubs[0].Topic != "epm_schneiderPm5xxx" {
		t.Errorf("Expected first topic 'epm_schneiderPm5xxx', got '%s'", pubs[0].Topic)
	}

	forTopic := recorder.ForTopic(TopicTemperature)
	if len(forTopic) != 1 {
		t.Fatalf("Expected 1 publication for topic %q, got %d", TopicTemperature, len(forTopic))
	}
}

func TestRecorderCopiesFields(t *testing.T) {
	recorder := NewRecorder()
	rec := Record{"acCurrentDraw": 3.5}
	if err := recorder.Publish(context.Background(), "epm_netbooter", rec); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	// Mutating the caller's record must not change the captured copy.
	rec["acCurrentDraw"] = 9.9

	pubs := recorder.Publications()
	if pubs[0].Fields["acCurrentDraw"] != 3.5 {
		t.Errorf("Expected captured value 3.5, got %v", pubs[0].Fields["acCurrentDraw"])
	}
}

func TestRaritanItemNaming(t *testing.T) {
	if got := RaritanInletItemName("current"); got != "inletCurrent" {
		t.Errorf("Expected 'inletCurrent', got '%s'", got)
	}
	if got := RaritanOutletItemName("voltage"); got != "outletVoltage" {
		t.Errorf("Expected 'outletVoltage', got '%s'", got)
	}
}

package schema_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/xraph/charter/policy"
	"github.com/xraph/charter/schema"
)

func validReturn() map[string]any {
	return map[string]any{
		"returnWindowDays": map[string]any{
			"framesOnly":          30,
			"prescriptionGlasses": 14,
			"contactLenses":       7,
		},
		"restockingFeePercent":       10,
		"customerPaysReturnShipping": true,
		"nonReturnableCategories":    []any{"contact-lenses-opened"},
	}
}

func validConfigs() map[policy.Type]map[string]any {
	return map[policy.Type]map[string]any{
		policy.TypeReturn: validReturn(),
		policy.TypeWarranty: {
			"framesMonths":               12,
			"lensesMonths":               6,
			"coversManufacturingDefects": true,
			"excludesScratchesFromWear":  true,
		},
		policy.TypeShipping: {
			"defaultCarrier":        "GHN",
			"standardDaysMin":       2,
			"standardDaysMax":       5,
			"expressDaysMin":        1,
			"expressDaysMax":        2,
			"freeShippingMinAmount": 500000,
		},
		policy.TypePrescription: {
			"maxPrescriptionAgeMonths": 12,
			"requirePD":                true,
			"allowHighPowerRange":      false,
		},
		policy.TypeCancellation: {
			"allowCancelReadyBeforeShip":               true,
			"allowCancelPrescriptionBeforeProduction":  true,
			"allowCancelPreorderBeforeSupplierConfirm": false,
		},
		policy.TypeRefund: {
			"refundToOriginalMethodOnly": true,
			"expectedProcessingDaysMin":  3,
			"expectedProcessingDaysMax":  7,
		},
	}
}

func hasField(err error, field string) bool {
	var ve *schema.ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	for _, f := range ve.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

func TestEmptyConfigAlwaysAccepted(t *testing.T) {
	for _, typ := range policy.Types() {
		if err := schema.Validate(typ, nil); err != nil {
			t.Errorf("%s nil config: %v", typ, err)
		}
		if err := schema.Validate(typ, map[string]any{}); err != nil {
			t.Errorf("%s empty config: %v", typ, err)
		}
	}
}

func TestValidConfigsAccepted(t *testing.T) {
	for typ, cfg := range validConfigs() {
		if err := schema.Validate(typ, cfg); err != nil {
			t.Errorf("%s: unexpected error: %v", typ, err)
		}
	}
}

func TestDocumentTypesIgnoreConfig(t *testing.T) {
	cfg := map[string]any{"anything": []any{1, "two"}}
	for _, typ := range []policy.Type{policy.TypePrivacy, policy.TypeTerms} {
		if err := schema.Validate(typ, cfg); err != nil {
			t.Errorf("%s: %v", typ, err)
		}
	}
}

func TestRestockingFeeBounds(t *testing.T) {
	for _, fee := range []any{150, -1, 100.5} {
		cfg := validReturn()
		cfg["restockingFeePercent"] = fee
		err := schema.Validate(policy.TypeReturn, cfg)
		if !errors.Is(err, schema.ErrInvalidConfig) {
			t.Fatalf("fee %v: expected ErrInvalidConfig, got %v", fee, err)
		}
		if !hasField(err, "restockingFeePercent") {
			t.Fatalf("fee %v: expected field error on restockingFeePercent, got %v", fee, err)
		}
	}

	for _, fee := range []any{0, 100, 12.5} {
		cfg := validReturn()
		cfg["restockingFeePercent"] = fee
		if err := schema.Validate(policy.TypeReturn, cfg); err != nil {
			t.Fatalf("fee %v: %v", fee, err)
		}
	}
}

func TestMissingNestedField(t *testing.T) {
	cfg := validReturn()
	cfg["returnWindowDays"] = map[string]any{"framesOnly": 30, "prescriptionGlasses": 14}

	err := schema.Validate(policy.TypeReturn, cfg)
	if err == nil {
		t.Fatal("expected error for missing contactLenses")
	}
	if !strings.Contains(err.Error(), "contactLenses") {
		t.Fatalf("error should name contactLenses: %v", err)
	}
}

func TestEveryRequiredFieldEnforced(t *testing.T) {
	for typ, cfg := range validConfigs() {
		for key := range cfg {
			partial := make(map[string]any, len(cfg))
			for k, v := range cfg {
				if k != key {
					partial[k] = v
				}
			}
			if err := schema.Validate(typ, partial); err == nil {
				t.Errorf("%s without %s: expected error", typ, key)
			}
		}
	}
}

func TestNonPositiveValuesRejected(t *testing.T) {
	cases := []struct {
		typ   policy.Type
		field string
	}{
		{policy.TypeWarranty, "framesMonths"},
		{policy.TypeWarranty, "lensesMonths"},
		{policy.TypeShipping, "standardDaysMin"},
		{policy.TypePrescription, "maxPrescriptionAgeMonths"},
		{policy.TypeRefund, "expectedProcessingDaysMin"},
	}
	for _, tc := range cases {
		cfg := validConfigs()[tc.typ]
		cfg[tc.field] = 0
		err := schema.Validate(tc.typ, cfg)
		if !hasField(err, tc.field) {
			t.Errorf("%s.%s = 0: expected field error, got %v", tc.typ, tc.field, err)
		}
	}
}

func TestWrongJSONTypes(t *testing.T) {
	cfg := validConfigs()[policy.TypeCancellation]
	cfg["allowCancelReadyBeforeShip"] = "yes"
	if err := schema.Validate(policy.TypeCancellation, cfg); !hasField(err, "allowCancelReadyBeforeShip") {
		t.Fatalf("expected boolean type error, got %v", err)
	}

	ret := validReturn()
	ret["nonReturnableCategories"] = []any{"ok", 3}
	if err := schema.Validate(policy.TypeReturn, ret); err == nil {
		t.Fatal("expected error for non-string category")
	}
}

func TestMinNotAboveMax(t *testing.T) {
	ship := validConfigs()[policy.TypeShipping]
	ship["standardDaysMin"] = 6
	if err := schema.Validate(policy.TypeShipping, ship); !hasField(err, "standardDaysMax") {
		t.Fatalf("expected standardDaysMax error, got %v", err)
	}

	refund := validConfigs()[policy.TypeRefund]
	refund["expectedProcessingDaysMax"] = 1
	if err := schema.Validate(policy.TypeRefund, refund); !hasField(err, "expectedProcessingDaysMax") {
		t.Fatalf("expected expectedProcessingDaysMax error, got %v", err)
	}
}

func TestExtraKeysTolerated(t *testing.T) {
	cfg := validReturn()
	cfg["note"] = "internal"
	if err := schema.Validate(policy.TypeReturn, cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUnknownType(t *testing.T) {
	if err := schema.Validate(policy.Type("loyalty"), map[string]any{"a": 1}); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestValidateTyped(t *testing.T) {
	good := &policy.RefundConfig{RefundToOriginalMethodOnly: true, ExpectedProcessingDaysMin: 1, ExpectedProcessingDaysMax: 3}
	if err := schema.ValidateTyped(good); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := &policy.WarrantyConfig{FramesMonths: 12}
	if err := schema.ValidateTyped(bad); !hasField(err, "lensesMonths") {
		t.Fatalf("expected lensesMonths error, got %v", err)
	}
}

func TestDocument(t *testing.T) {
	if len(schema.Document(policy.TypeShipping)) == 0 {
		t.Fatal("expected shipping schema document")
	}
	if schema.Document(policy.TypeTerms) != nil {
		t.Fatal("terms has no schema")
	}
}

package policy

import (
	"encoding/json"
	"fmt"
)

// TypedConfig is the decoded configuration record of one policy type.
type TypedConfig interface {
	PolicyType() Type
}

// ReturnWindowDays is the return window per product line.
type ReturnWindowDays struct {
	FramesOnly          int `json:"framesOnly" yaml:"framesOnly"`
	PrescriptionGlasses int `json:"prescriptionGlasses" yaml:"prescriptionGlasses"`
	ContactLenses       int `json:"contactLenses" yaml:"contactLenses"`
}

// ReturnConfig configures a return policy.
type ReturnConfig struct {
	ReturnWindowDays           ReturnWindowDays `json:"returnWindowDays" yaml:"returnWindowDays"`
	RestockingFeePercent       float64          `json:"restockingFeePercent" yaml:"restockingFeePercent"`
	CustomerPaysReturnShipping bool             `json:"customerPaysReturnShipping" yaml:"customerPaysReturnShipping"`
	NonReturnableCategories    []string         `json:"nonReturnableCategories" yaml:"nonReturnableCategories"`
}

// WarrantyConfig configures a warranty policy.
type WarrantyConfig struct {
	FramesMonths               int  `json:"framesMonths" yaml:"framesMonths"`
	LensesMonths               int  `json:"lensesMonths" yaml:"lensesMonths"`
	CoversManufacturingDefects bool `json:"coversManufacturingDefects" yaml:"coversManufacturingDefects"`
	ExcludesScratchesFromWear  bool `json:"excludesScratchesFromWear" yaml:"excludesScratchesFromWear"`
}

// ShippingConfig configures a shipping policy.
type ShippingConfig struct {
	DefaultCarrier        string  `json:"defaultCarrier" yaml:"defaultCarrier"`
	StandardDaysMin       int     `json:"standardDaysMin" yaml:"standardDaysMin"`
	StandardDaysMax       int     `json:"standardDaysMax" yaml:"standardDaysMax"`
	ExpressDaysMin        int     `json:"expressDaysMin" yaml:"expressDaysMin"`
	ExpressDaysMax        int     `json:"expressDaysMax" yaml:"expressDaysMax"`
	FreeShippingMinAmount float64 `json:"freeShippingMinAmount" yaml:"freeShippingMinAmount"`
}

// PrescriptionConfig configures prescription acceptance.
type PrescriptionConfig struct {
	MaxPrescriptionAgeMonths int  `json:"maxPrescriptionAgeMonths" yaml:"maxPrescriptionAgeMonths"`
	RequirePD                bool `json:"requirePD" yaml:"requirePD"`
	AllowHighPowerRange      bool `json:"allowHighPowerRange" yaml:"allowHighPowerRange"`
}

// CancellationConfig configures when an order may be cancelled.
type CancellationConfig struct {
	AllowCancelReadyBeforeShip               bool `json:"allowCancelReadyBeforeShip" yaml:"allowCancelReadyBeforeShip"`
	AllowCancelPrescriptionBeforeProduction  bool `json:"allowCancelPrescriptionBeforeProduction" yaml:"allowCancelPrescriptionBeforeProduction"`
	AllowCancelPreorderBeforeSupplierConfirm bool `json:"allowCancelPreorderBeforeSupplierConfirm" yaml:"allowCancelPreorderBeforeSupplierConfirm"`
}

// RefundConfig configures a refund policy.
type RefundConfig struct {
	RefundToOriginalMethodOnly bool `json:"refundToOriginalMethodOnly" yaml:"refundToOriginalMethodOnly"`
	ExpectedProcessingDaysMin  int  `json:"expectedProcessingDaysMin" yaml:"expectedProcessingDaysMin"`
	ExpectedProcessingDaysMax  int  `json:"expectedProcessingDaysMax" yaml:"expectedProcessingDaysMax"`
}

func (ReturnConfig) PolicyType() Type       { return TypeReturn }
func (WarrantyConfig) PolicyType() Type     { return TypeWarranty }
func (ShippingConfig) PolicyType() Type     { return TypeShipping }
func (PrescriptionConfig) PolicyType() Type { return TypePrescription }
func (CancellationConfig) PolicyType() Type { return TypeCancellation }
func (RefundConfig) PolicyType() Type       { return TypeRefund }

// NewConfig returns an empty record for t, or nil for document-only types.
func NewConfig(t Type) TypedConfig {
	switch t {
	case TypeReturn:
		return &ReturnConfig{}
	case TypeWarranty:
		return &WarrantyConfig{}
	case TypeShipping:
		return &ShippingConfig{}
	case TypePrescription:
		return &PrescriptionConfig{}
	case TypeCancellation:
		return &CancellationConfig{}
	case TypeRefund:
		return &RefundConfig{}
	default:
		return nil
	}
}

// DecodeConfig decodes m into the record for t. It returns nil, nil for an
// empty map or a type that carries no config.
func DecodeConfig(t Type, m map[string]any) (TypedConfig, error) {
	cfg := NewConfig(t)
	if cfg == nil || len(m) == 0 {
		return nil, nil //nolint:nilnil // absent config is not an error
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("policy: encode %s config: %w", t, err)
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("policy: decode %s config: %w", t, err)
	}
	return cfg, nil
}

// EncodeConfig turns a typed record back into the generic map form.
func EncodeConfig(cfg TypedConfig) (map[string]any, error) {
	if cfg == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("policy: encode %s config: %w", cfg.PolicyType(), err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("policy: decode %s config: %w", cfg.PolicyType(), err)
	}
	return out, nil
}

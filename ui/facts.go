package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xraph/charter/policy"
)

// Facts turns a policy's typed config into customer-facing sentences.
// Document-only types and empty configs yield nothing.
func Facts(p *policy.Policy) []string {
	if p == nil {
		return nil
	}
	cfg, err := policy.DecodeConfig(p.Type, p.Config)
	if err != nil || cfg == nil {
		return nil
	}

	switch c := cfg.(type) {
	case *policy.ReturnConfig:
		out := []string{
			fmt.Sprintf("Frames can be returned within %s.", days(c.ReturnWindowDays.FramesOnly)),
			fmt.Sprintf("Prescription glasses can be returned within %s.", days(c.ReturnWindowDays.PrescriptionGlasses)),
			fmt.Sprintf("Contact lenses can be returned within %s.", days(c.ReturnWindowDays.ContactLenses)),
		}
		if c.RestockingFeePercent > 0 {
			out = append(out, fmt.Sprintf("A %s%% restocking fee applies.", number(c.RestockingFeePercent)))
		} else {
			out = append(out, "No restocking fee is charged.")
		}
		if c.CustomerPaysReturnShipping {
			out = append(out, "Return shipping is paid by the customer.")
		} else {
			out = append(out, "Return shipping is free.")
		}
		if len(c.NonReturnableCategories) > 0 {
			out = append(out, "Not returnable: "+strings.Join(c.NonReturnableCategories, ", ")+".")
		}
		return out

	case *policy.WarrantyConfig:
		out := []string{
			fmt.Sprintf("Frames are covered for %s.", months(c.FramesMonths)),
			fmt.Sprintf("Lenses are covered for %s.", months(c.LensesMonths)),
		}
		if c.CoversManufacturingDefects {
			out = append(out, "Manufacturing defects are covered.")
		}
		if c.ExcludesScratchesFromWear {
			out = append(out, "Scratches from normal wear are not covered.")
		}
		return out

	case *policy.ShippingConfig:
		out := []string{
			fmt.Sprintf("Standard delivery takes %d to %d business days.", c.StandardDaysMin, c.StandardDaysMax),
			fmt.Sprintf("Express delivery takes %d to %d business days.", c.ExpressDaysMin, c.ExpressDaysMax),
		}
		if c.DefaultCarrier != "" {
			out = append(out, "Orders ship with "+c.DefaultCarrier+".")
		}
		if c.FreeShippingMinAmount > 0 {
			out = append(out, fmt.Sprintf("Shipping is free on orders of %s or more.", number(c.FreeShippingMinAmount)))
		}
		return out

	case *policy.PrescriptionConfig:
		out := []string{
			fmt.Sprintf("Prescriptions must be issued within the last %s.", months(c.MaxPrescriptionAgeMonths)),
		}
		if c.RequirePD {
			out = append(out, "A pupillary distance (PD) measurement is required.")
		}
		if c.AllowHighPowerRange {
			out = append(out, "High-power prescriptions are accepted.")
		} else {
			out = append(out, "High-power prescriptions are not accepted.")
		}
		return out

	case *policy.CancellationConfig:
		return []string{
			allowed(c.AllowCancelReadyBeforeShip, "In-stock orders", "before they ship"),
			allowed(c.AllowCancelPrescriptionBeforeProduction, "Prescription orders", "before lens production starts"),
			allowed(c.AllowCancelPreorderBeforeSupplierConfirm, "Pre-orders", "before the supplier confirms them"),
		}

	case *policy.RefundConfig:
		out := []string{
			fmt.Sprintf("Refunds are processed within %d to %d days.", c.ExpectedProcessingDaysMin, c.ExpectedProcessingDaysMax),
		}
		if c.RefundToOriginalMethodOnly {
			out = append(out, "Refunds go to the original payment method only.")
		}
		return out
	}
	return nil
}

func allowed(ok bool, subject, when string) string {
	if ok {
		return subject + " can be cancelled " + when + "."
	}
	return subject + " cannot be cancelled."
}

func days(n int) string {
	if n == 1 {
		return "1 day"
	}
	return strconv.Itoa(n) + " days"
}

func months(n int) string {
	if n == 1 {
		return "1 month"
	}
	return strconv.Itoa(n) + " months"
}

func number(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

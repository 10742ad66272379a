package scoring

import (
	"slices"

	"github.com/kansa-ai/kansa/internal/model"
)

// Compliance flag strings raised by the per-framework checks.
const (
	FlagSOXUnreviewedFinancial = "sox_unreviewed_financial_decision"
	FlagSOXMissingDataSource   = "sox_missing_data_source"
	FlagGDPRPersonalData       = "gdpr_personal_data"
	FlagGDPRNoOversight        = "gdpr_automated_decision_without_oversight"
	FlagSOC2MissingValidation  = "soc2_missing_validation_controls"
)

// financialInputTypes are decision types with direct financial-reporting impact.
var financialInputTypes = map[string]bool{
	"tax_guidance":      true,
	"financial_insight": true,
}

// ComplianceFlags runs the framework-specific checks for every configured
// framework and unions the results, preserving first-seen order.
func (e *Engine) ComplianceFlags(in model.DecisionInput, ethics model.EthicsCheck, level model.RiskLevel, reviewed bool) []string {
	flags := []string{}
	seen := map[string]bool{}
	add := func(fs ...string) {
		for _, f := range fs {
			if !seen[f] {
				seen[f] = true
				flags = append(flags, f)
			}
		}
	}

	for _, fw := range e.frameworks {
		switch fw {
		case "sox":
			add(soxFlags(in, level, reviewed)...)
		case "gdpr":
			add(gdprFlags(ethics, level, reviewed)...)
		case "soc2":
			add(soc2Flags(in)...)
		}
	}
	return flags
}

func soxFlags(in model.DecisionInput, level model.RiskLevel, reviewed bool) []string {
	var flags []string
	if financialInputTypes[in.InputType] && level.AtLeast(model.RiskHigh) && !reviewed {
		flags = append(flags, FlagSOXUnreviewedFinancial)
	}
	if in.DataSource == "" {
		flags = append(flags, FlagSOXMissingDataSource)
	}
	return flags
}

func gdprFlags(ethics model.EthicsCheck, level model.RiskLevel, reviewed bool) []string {
	var flags []string
	if slices.Contains(ethics.Flags, FlagPrivacyConcern) {
		flags = append(flags, FlagGDPRPersonalData)
	}
	if level.AtLeast(model.RiskHigh) && !reviewed {
		flags = append(flags, FlagGDPRNoOversight)
	}
	return flags
}

func soc2Flags(in model.DecisionInput) []string {
	if len(in.Validations) == 0 {
		return []string{FlagSOC2MissingValidation}
	}
	return nil
}

// Package config translates CLI flags and config file values into the
// structured configurations the reconciliation packages consume.
package config

import (
	"gst-reconciliation-service/internal/matcher"
	pkgerrors "gst-reconciliation-service/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// CreateToleranceConfig builds the matcher tolerances from viper,
// which already merges flag, environment and config file values.
func CreateToleranceConfig() (*matcher.ToleranceConfig, error) {
	cfg := matcher.DefaultToleranceConfig()

	if viper.IsSet("tax-tolerance") {
		cfg.TaxAmountTolerance = decimal.NewFromFloat(viper.GetFloat64("tax-tolerance"))
	}
	if viper.IsSet("date-tolerance") {
		cfg.DateToleranceDays = viper.GetInt("date-tolerance")
	}
	if viper.IsSet("name-threshold") {
		cfg.NameSimilarityThreshold = viper.GetFloat64("name-threshold")
	}
	if viper.IsSet("gstin-threshold") {
		cfg.GSTINSimilarityThreshold = viper.GetFloat64("gstin-threshold")
	}
	if viper.IsSet("group-tax-tolerance") {
		cfg.GroupTaxTolerance = decimal.NewFromFloat(viper.GetFloat64("group-tax-tolerance"))
	}
	if viper.IsSet("name-preference") {
		cfg.NamePreference = matcher.NamePreference(viper.GetString("name-preference"))
	}
	if viper.IsSet("case-sensitive-names") {
		cfg.CaseSensitiveNames = viper.GetBool("case-sensitive-names")
	}

	if err := cfg.Validate(); err != nil {
		return nil, pkgerrors.ConfigurationError(pkgerrors.CodeInvalidConfig, "tolerances", cfg.String(), err)
	}
	return cfg, nil
}

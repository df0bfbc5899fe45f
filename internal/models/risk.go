package models

// RiskLevel пересчитывается каждый цикл из просадки и волатильности.
// Не персистится — чисто производная величина.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskModerate RiskLevel = "MODERATE"
	RiskHigh     RiskLevel = "HIGH"
	RiskExtreme  RiskLevel = "EXTREME"
)

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/breenafernanda/bess-shaving-dimensioner/internal/api/models"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/strategy"
)

// StrategyHandler handles strategy-related requests
type StrategyHandler struct{}

// NewStrategyHandler creates a new strategy handler
func NewStrategyHandler() *StrategyHandler {
	return &StrategyHandler{}
}

var strategyDescriptions = map[strategy.Name]string{
	strategy.Solar:       "Charges from on-site PV between 06:00 and 18:00 following a bell curve peaking at noon. Charged energy is free.",
	strategy.GridOffPeak: "Charges from the grid at full battery power inside a fixed off-peak window, paying the tariff price for that hour.",
}

// ListStrategies handles GET /api/v1/strategies
func (h *StrategyHandler) ListStrategies(c *gin.Context) {
	def := strategy.DefaultParams()
	params := map[strategy.Name][]models.ParameterInfo{
		strategy.Solar: {
			{
				Name:        "solar_scale",
				Type:        "float",
				Description: "Share of battery power the PV array delivers at noon",
				Default:     def.SolarScale,
			},
		},
		strategy.GridOffPeak: {
			{
				Name:        "grid_charge_start_hour",
				Type:        "int",
				Description: "First hour of the grid charging window (inclusive)",
				Default:     def.GridChargeStartHour,
			},
			{
				Name:        "grid_charge_end_hour",
				Type:        "int",
				Description: "End of the grid charging window (exclusive)",
				Default:     def.GridChargeEndHour,
			},
		},
	}

	strategies := make([]models.StrategyInfo, 0, len(strategy.Names()))
	for _, name := range strategy.Names() {
		strategies = append(strategies, models.StrategyInfo{
			Name:        string(name),
			Description: strategyDescriptions[name],
			Parameters:  params[name],
		})
	}
	c.JSON(http.StatusOK, gin.H{"strategies": strategies})
}

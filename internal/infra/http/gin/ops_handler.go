package ginserver

import (
	"log/slog"
	"net/http"
	"strconv"

	gin "github.com/gin-gonic/gin"

	"roomstay/internal/app/commands"
	opsapp "roomstay/internal/app/handlers/ops"
	"roomstay/internal/app/middleware"
)

type OpsHandler struct {
	Commands commands.Bus
	Logger   *slog.Logger
}

// Reconcile reports calendar drift for one unit or all of them; repair=true
// also fixes what it finds.
func (h OpsHandler) Reconcile(c *gin.Context) {
	if _, ok := requireRole(c, middleware.RoleOperator); !ok {
		return
	}
	repair, _ := strconv.ParseBool(c.Query("repair"))
	dispatch(c, h.Commands, h.Logger, http.StatusOK, opsapp.ReconcileCommand{UnitID: c.Query("unit_id"), Repair: repair})
}

func (h OpsHandler) ExpireHolds(c *gin.Context) {
	if _, ok := requireRole(c, middleware.RoleOperator); !ok {
		return
	}
	dispatch(c, h.Commands, h.Logger, http.StatusOK, opsapp.ExpireHoldsCommand{})
}

var _ OpsHTTP = OpsHandler{}

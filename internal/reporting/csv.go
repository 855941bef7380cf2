package reporting

import (
	"fmt"
	"strings"
)

// RenderDailyCSV renders daily rollups as CSV string.
func RenderDailyCSV(rows []DailyRow) string {
	var sb strings.Builder

	sb.WriteString("date,profit_loss_xrd,profit_loss_usd,volume_xrd,volume_usd\n")
	for _, d := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s\n",
			d.Date,
			d.ProfitLossXRD.StringFixed(8),
			d.ProfitLossUSD.StringFixed(2),
			d.VolumeXRD.StringFixed(8),
			d.VolumeUSD.StringFixed(2),
		))
	}

	return sb.String()
}

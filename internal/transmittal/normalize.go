package transmittal

import (
	"strings"

	"github.com/ginjaninja78/transmittal-log/internal/types"
)

// Normalize returns a copy of s with surrounding whitespace removed from every
// header field and line-item value. Interior text is left as entered.
func Normalize(s types.Submission) types.Submission {
	out := types.Submission{
		TransmittalNo:   strings.TrimSpace(s.TransmittalNo),
		FromName:        strings.TrimSpace(s.FromName),
		FromDepartment:  strings.TrimSpace(s.FromDepartment),
		DateTransmitted: strings.TrimSpace(s.DateTransmitted),
		ToName:          strings.TrimSpace(s.ToName),
		ToDepartment:    strings.TrimSpace(s.ToDepartment),
		ToAddress:       strings.TrimSpace(s.ToAddress),
		Items:           make([]types.LineItem, len(s.Items)),
	}
	for i, item := range s.Items {
		out.Items[i] = normalizeItem(item)
	}
	return out
}

func normalizeItem(item types.LineItem) types.LineItem {
	return types.LineItem{
		ReferenceNumber: strings.TrimSpace(item.ReferenceNumber),
		DocDetails:      strings.TrimSpace(item.DocDetails),
		Supplier:        strings.TrimSpace(item.Supplier),
		PayorCompany:    strings.TrimSpace(item.PayorCompany),
		Property:        strings.TrimSpace(item.Property),
		Location:        strings.TrimSpace(item.Location),
		Sector:          strings.TrimSpace(item.Sector),
		ServiceType:     strings.TrimSpace(item.ServiceType),
		PeriodCovered:   strings.TrimSpace(item.PeriodCovered),
		Particulars:     strings.TrimSpace(item.Particulars),
		Amount:          strings.TrimSpace(item.Amount),
	}
}

package webhook

import (
	"strings"
	"time"
	"unicode"

	"crm-webhook/internal/leads"

	"github.com/google/uuid"
)

// TimeLayout is how epoch fields are rendered on Lead rows.
const TimeLayout = "2006-01-02 15:04:05"

// Map projects a decoded webhook onto entity drafts. It never fails: missing
// keys become nil fields or absent drafts.
//
// leadStatus is only used for telephony events.
func Map(f Flat, kind Kind, leadStatus string) leads.Bundle {
	var b leads.Bundle

	if subdomain, ok := f.Get("subdomain").Text(); ok {
		b.Integration = &leads.Integration{
			Subdomain: subdomain,
			Link:      optText(f.Get("self")),
		}
	}

	source := f.Get("metadata", "event_source")
	if crmUserID, ok := source.Get("id").Int64(); ok {
		b.Manager = &leads.Manager{
			CRMUserID: crmUserID,
			Username:  optText(source.Get("author_name")),
			Type:      optText(source.Get("type")),
		}
	}

	mainUser := optInt(f.Get("main_user_id"))
	lead := &leads.Lead{
		OwnerID:     mainUser,
		AccountID:   copyInt(mainUser),
		ElementID:   optInt(f.Get("element_id")),
		ElementType: optInt(f.Get("element_type")),
		TimestampX:  optText(f.Get("timestamp_x")),
		CreatedAt:   optUnix(f.Get("created_at")),
		UpdatedAt:   optUnix(f.Get("updated_at")),
	}
	if kind == KindMessage {
		if s, ok := f.Get("text").Str(); ok {
			lead.TextMessage = &s
		}
	}
	if kind == KindTelephony {
		lead.LeadStatus = leadStatus
	}
	b.Lead = lead

	if kind != KindTelephony {
		return b
	}

	text := f.Get("text")
	call := &leads.Call{
		AudioMP3:   optText(text.Get("LINK")),
		Duration:   optInt(text.Get("DURATION")),
		CallStatus: optText(text.Get("call_status")),
		CallResult: optText(text.Get("call_result")),
	}
	if uniq, ok := text.Get("UNIQ").Text(); ok && uniq != "" {
		call.UniqueUUID = uniq
	} else {
		call.UniqueUUID = uuid.NewString()
	}
	if phone, ok := text.Get("PHONE").Text(); ok {
		phone = strings.TrimLeftFunc(phone, unicode.IsSpace)
		call.PhoneNumber = &phone
	}
	b.Call = call
	b.Link = &leads.CallLeadLink{}

	return b
}

// Download describes the audio to fetch for a telephony event.
type Download struct {
	// Filename is the provider's UNIQ call id; may be empty.
	Filename string
	AudioURL string
	// ElementID is the CRM lead id the note is posted to.
	ElementID *int64
	// Domain is the CRM base URL taken from "self".
	Domain string
}

// ExtractDownload returns the audio reference of a telephony event.
// ok is false for message events. An empty AudioURL means nothing to fetch.
func ExtractDownload(f Flat, kind Kind) (Download, bool) {
	if kind != KindTelephony {
		return Download{}, false
	}
	text := f.Get("text")
	d := Download{ElementID: optInt(f.Get("element_id"))}
	d.Filename, _ = text.Get("UNIQ").Text()
	d.AudioURL, _ = text.Get("LINK").Str()
	d.Domain, _ = f.Get("self").Str()
	return d, true
}

func optText(v Value) *string {
	s, ok := v.Text()
	if !ok {
		return nil
	}
	return &s
}

func optInt(v Value) *int64 {
	n, ok := v.Int64()
	if !ok {
		return nil
	}
	return &n
}

func copyInt(p *int64) *int64 {
	if p == nil {
		return nil
	}
	n := *p
	return &n
}

func optUnix(v Value) *string {
	n, ok := v.Int64()
	if !ok {
		return nil
	}
	t := time.Unix(n, 0).UTC()
	// Outside four-digit years TimeLayout no longer sorts or parses back.
	if y := t.Year(); y < 1 || y > 9999 {
		return nil
	}
	s := t.Format(TimeLayout)
	return &s
}

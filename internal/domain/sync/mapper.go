package sync

import (
	"encoding/json"
	"fmt"

	"github.com/clinsync/clinsync/internal/domain/patient"
	"github.com/clinsync/clinsync/internal/domain/session"
)

// Per-kind alias tables. Producer field names have drifted across client
// versions; every historically-seen variant is listed, highest priority
// first. Do not reorder: with two conflicting fields present, the earlier
// alias wins, and that choice is a contract.
var (
	patientRefAliases = []string{"patientCpt", "patient_id", "patientId", "patient"}
	sessionRefAliases = []string{"sessionId", "session_id", "visitId", "visit_id"}
	trackingCodeAlias = []string{"cpt", "trackingCode", "tracking_code", "code"}
	fullNameAliases   = []string{"fullName", "full_name", "name", "patientName"}
	sexAliases        = []string{"sex", "gender"}
	birthDateAliases  = []string{"birthDate", "birth_date", "dob"}
	phoneAliases      = []string{"phone", "phoneNumber", "phone_number", "telephone"}
	villageAliases    = []string{"village", "address", "location"}
	lastSeenAliases   = []string{"lastSeen", "last_seen", "lastVisit"}
	stageAliases      = []string{"stage", "phase"}
	priorityAliases   = []string{"priority", "triage", "triageColor", "triage_color"}
	complaintAliases  = []string{"complaint", "chiefComplaint", "chief_complaint"}
	notesAliases      = []string{"notes", "note", "comment"}
	planAliases       = []string{"treatmentPlan", "treatment_plan", "plan"}
	stateAliases      = []string{"state", "workflowState", "workflow_state"}
	actorAliases      = []string{"createdBy", "created_by", "userId", "user_id", "user", "author"}
	formTypeAliases   = []string{"formType", "form_type", "template"}
	modelAliases      = []string{"model", "aiModel", "ai_model"}
	intentAliases     = []string{"intent", "interactionType", "interaction_type"}
	reportTypeAliases = []string{"reportType", "report_type", "category"}
	titleAliases      = []string{"title", "subject", "heading"}
	modalityAliases   = []string{"modality", "studyType", "study_type"}
	bodySiteAliases   = []string{"bodySite", "body_site", "region"}
	imageRefAliases   = []string{"imageRef", "image_ref", "imageUrl", "image_url", "attachment"}
)

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// mapPatient normalizes a patient document. The tracking code is the join
// key for every other entity and must be present.
func mapPatient(doc RawDocument) (*patient.Patient, error) {
	code := doc.FirstString(trackingCodeAlias)
	if code == "" {
		return nil, fmt.Errorf("patient document missing tracking code")
	}
	id, _ := doc.ID()
	return &patient.Patient{
		TrackingCode: code,
		DocID:        optional(id),
		FullName:     doc.FirstString(fullNameAliases),
		Sex:          optional(doc.FirstString(sexAliases)),
		BirthDate:    doc.FirstTime(birthDateAliases),
		Phone:        optional(doc.FirstString(phoneAliases)),
		Village:      optional(doc.FirstString(villageAliases)),
		LastSeenAt:   doc.FirstTime(lastSeenAliases),
		DocUpdatedAt: doc.UpdatedAt(),
		Active:       true,
	}, nil
}

// sessionDoc carries a mapped session plus the references the engine still
// has to resolve against local rows.
type sessionDoc struct {
	sess       *session.Session
	patientRef string
	actorRef   interface{}
	state      session.State
	stateKnown bool
}

func mapSession(doc RawDocument) (*sessionDoc, error) {
	patientRef := doc.FirstString(patientRefAliases)
	if patientRef == "" {
		return nil, fmt.Errorf("session document missing patient reference")
	}
	id, _ := doc.ID()

	out := &sessionDoc{
		sess: &session.Session{
			DocID:         optional(id),
			Stage:         session.Stage(doc.FirstString(stageAliases)),
			Priority:      session.ParsePriority(doc.FirstString(priorityAliases)),
			Complaint:     optional(doc.FirstString(complaintAliases)),
			Notes:         optional(doc.FirstString(notesAliases)),
			TreatmentPlan: optional(doc.FirstString(planAliases)),
			DocUpdatedAt:  doc.UpdatedAt(),
		},
		patientRef: patientRef,
		actorRef:   doc.FirstValue(actorAliases),
	}
	if out.sess.Stage == "" {
		out.sess.Stage = session.StageRegistration
	}
	if raw := doc.FirstString(stateAliases); raw != "" {
		if state, ok := session.ParseState(raw); ok {
			out.state = state
			out.stateKnown = true
		}
	}
	return out, nil
}

func mapForm(doc RawDocument) (*FormRecord, error) {
	id, _ := doc.ID()
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal form payload: %w", err)
	}
	return &FormRecord{
		DocID:      id,
		PatientRef: doc.FirstString(patientRefAliases),
		SessionRef: doc.FirstString(sessionRefAliases),
		FormType:   doc.FirstString(formTypeAliases),
		Payload:    payload,
		UpdatedAt:  doc.UpdatedAt(),
	}, nil
}

func mapAILog(doc RawDocument) (*AILogRecord, error) {
	id, _ := doc.ID()
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal ai log payload: %w", err)
	}
	return &AILogRecord{
		DocID:      id,
		SessionRef: doc.FirstString(sessionRefAliases),
		Model:      doc.FirstString(modelAliases),
		Intent:     doc.FirstString(intentAliases),
		Payload:    payload,
		UpdatedAt:  doc.UpdatedAt(),
	}, nil
}

func mapReport(doc RawDocument) (*ReportRecord, error) {
	id, _ := doc.ID()
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal report payload: %w", err)
	}
	return &ReportRecord{
		DocID:      id,
		SessionRef: doc.FirstString(sessionRefAliases),
		ReportType: doc.FirstString(reportTypeAliases),
		Title:      doc.FirstString(titleAliases),
		Payload:    payload,
		UpdatedAt:  doc.UpdatedAt(),
	}, nil
}

func mapImaging(doc RawDocument) (*ImagingRecord, error) {
	id, _ := doc.ID()
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal imaging payload: %w", err)
	}
	return &ImagingRecord{
		DocID:      id,
		SessionRef: doc.FirstString(sessionRefAliases),
		Modality:   doc.FirstString(modalityAliases),
		BodySite:   doc.FirstString(bodySiteAliases),
		ImageRef:   doc.FirstString(imageRefAliases),
		Payload:    payload,
		UpdatedAt:  doc.UpdatedAt(),
	}, nil
}

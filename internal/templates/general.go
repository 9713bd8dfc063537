package templates

import (
	"strings"

	"github.com/joseph-ayodele/document-extractor/constants"
)

type transcriptTemplate struct{ base }

// NewTranscript is the generic academic transcript template.
func NewTranscript() Template {
	return transcriptTemplate{base{
		name:     "transcript",
		category: constants.CategoryTranscript,
		fields: []FieldDefinition{
			required("student_name", "Student Name", FieldString).describe("Full name of the student"),
			optional("student_id", "Student ID", FieldString).describe("Student identification number"),
			required("institution_name", "Institution Name", FieldString).describe("Name of the school/university"),
			optional("date_of_birth", "Date of Birth", FieldDate),
			optional("graduation_date", "Graduation Date", FieldDate),
			optional("gpa", "GPA", FieldNumber).describe("Grade Point Average"),
			optional("gpa_scale", "GPA Scale", FieldString).describe("GPA scale (e.g., 4.0, 10.0)"),
			optional("class_rank", "Class Rank", FieldString),
			optional("total_credits", "Total Credits", FieldNumber),
			optional("courses", "Courses", FieldArray).describe("List of courses with grades"),
			optional("degree_type", "Degree Type", FieldString).describe("Type of degree (e.g., High School Diploma, Bachelor's)"),
		},
		keywords: []string{
			"transcript", "academic record", "grade point average", "gpa", "credits",
			"course", "semester", "cumulative", "official transcript", "registrar",
		},
	}}
}

func (t transcriptTemplate) PostProcess(fields map[string]any) map[string]any {
	out := copyFields(fields)
	if v := out["gpa"]; !isEmpty(v) {
		if gpa, ok := firstNumber(v); ok {
			out["gpa"] = gpa
		}
	}
	titleField(out, "student_name")
	return out
}

type idDocumentTemplate struct{ base }

// NewIDDocument covers passports, driving licences and national ID cards
// that no jurisdiction-specific template claims.
func NewIDDocument() Template {
	return idDocumentTemplate{base{
		name:     "id_document",
		category: constants.CategoryIDDocument,
		fields: []FieldDefinition{
			required("full_name", "Full Name", FieldString),
			optional("first_name", "First Name", FieldString),
			optional("last_name", "Last Name", FieldString),
			required("date_of_birth", "Date of Birth", FieldDate),
			required("document_number", "Document Number", FieldString).describe("ID number, passport number, etc."),
			optional("document_type", "Document Type", FieldString).describe("Passport, Driver's License, National ID, etc."),
			optional("issue_date", "Issue Date", FieldDate),
			optional("expiry_date", "Expiry Date", FieldDate),
			optional("nationality", "Nationality", FieldString),
			optional("gender", "Gender", FieldString),
			optional("address", "Address", FieldString),
			optional("place_of_birth", "Place of Birth", FieldString),
			optional("issuing_authority", "Issuing Authority", FieldString),
		},
		keywords: []string{
			"passport", "driver", "license", "identity", "id card", "national id",
			"date of birth", "dob", "expiry", "nationality", "place of issue",
		},
	}}
}

func (t idDocumentTemplate) PostProcess(fields map[string]any) map[string]any {
	out := copyFields(fields)
	if isEmpty(out["full_name"]) {
		first, _ := stringify(out["first_name"])
		last, _ := stringify(out["last_name"])
		if first != "" || last != "" {
			out["full_name"] = strings.TrimSpace(first + " " + last)
		}
	}
	for _, name := range []string{"full_name", "first_name", "last_name"} {
		titleField(out, name)
	}
	normalizeGender(out)
	return out
}

func (t idDocumentTemplate) Derivations() map[string][]string {
	return map[string][]string{"full_name": {"first_name", "last_name"}}
}

type certificateTemplate struct{ base }

// NewCertificate is the generic certificate/award template.
func NewCertificate() Template {
	return certificateTemplate{base{
		name:     "certificate",
		category: constants.CategoryCertificate,
		fields: []FieldDefinition{
			required("recipient_name", "Recipient Name", FieldString),
			required("certificate_title", "Certificate Title", FieldString).describe("Title or type of certificate"),
			required("issuing_organization", "Issuing Organization", FieldString),
			optional("issue_date", "Issue Date", FieldDate),
			optional("expiry_date", "Expiry Date", FieldDate),
			optional("certificate_id", "Certificate ID", FieldString).describe("Certificate number or credential ID"),
			optional("achievement_description", "Achievement Description", FieldString),
			optional("course_name", "Course/Program Name", FieldString),
			optional("grade_or_score", "Grade/Score", FieldString),
			optional("duration", "Duration", FieldString).describe("Duration of course or validity period"),
			optional("signatories", "Signatories", FieldArray).describe("Names of people who signed the certificate"),
		},
		keywords: []string{
			"certificate", "certify", "certification", "awarded", "achievement",
			"completion", "hereby", "credential", "honor", "recognition", "conferred",
		},
	}}
}

var titlePrefixes = []string{"certificate of ", "certificate for "}

func (t certificateTemplate) PostProcess(fields map[string]any) map[string]any {
	out := copyFields(fields)
	titleField(out, "recipient_name")
	if title, ok := out["certificate_title"].(string); ok && title != "" {
		out["certificate_title"] = stripTitlePrefixes(title)
	}
	return out
}

// stripTitlePrefixes removes leading "Certificate of/for" until none is left.
func stripTitlePrefixes(title string) string {
	title = strings.TrimSpace(title)
	for {
		stripped := false
		for _, p := range titlePrefixes {
			if len(title) >= len(p) && strings.EqualFold(title[:len(p)], p) {
				title = strings.TrimSpace(title[len(p):])
				stripped = true
			}
		}
		if !stripped {
			return title
		}
	}
}

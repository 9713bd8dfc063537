package templates

import (
	"strings"

	"github.com/joseph-ayodele/document-extractor/constants"
)

// UAN card / e-Shram card issued through EPFO.
type uanTemplate struct{ base }

func NewUAN() Template {
	return uanTemplate{base{
		name:     "uan",
		category: constants.CategoryIDDocument,
		fields: []FieldDefinition{
			required("member_name", "Member Name", FieldString).describe("Name of the member/employee"),
			required("uan_number", "UAN Number", FieldString).describe("12-digit Universal Account Number"),
			required("date_of_birth", "Date of Birth", FieldDate),
			optional("gender", "Gender", FieldString),
			optional("fathers_name", "Father's/Husband's Name", FieldString),
			optional("aadhaar_verified", "Aadhaar Verified", FieldString),
			optional("pan_verified", "PAN Verified", FieldString),
			optional("bank_verified", "Bank Verified", FieldString),
			optional("employer_name", "Employer Name", FieldString),
			optional("establishment_id", "Establishment ID", FieldString),
			optional("address", "Address", FieldString),
		},
		keywords: []string{
			"uan", "universal account number", "epfo", "epf", "provident fund",
			"shram", "e-shram", "ministry of labour", "श्रम कार्ड", "member id",
			"unorganised worker",
		},
	}}
}

func (t uanTemplate) PostProcess(fields map[string]any) map[string]any {
	out := copyFields(fields)
	titleField(out, "member_name")
	if v := out["uan_number"]; !isEmpty(v) {
		if uan := compactID(v); allDigits(uan) {
			out["uan_number"] = uan
		}
	}
	return out
}

// Aadhaar card issued by UIDAI.
type aadhaarTemplate struct{ base }

func NewAadhaar() Template {
	return aadhaarTemplate{base{
		name:     "aadhaar",
		category: constants.CategoryIDDocument,
		fields: []FieldDefinition{
			required("full_name", "Full Name", FieldString),
			required("aadhaar_number", "Aadhaar Number", FieldString).describe("12-digit Aadhaar number (XXXX XXXX XXXX)"),
			required("date_of_birth", "Date of Birth", FieldDate),
			optional("gender", "Gender", FieldString),
			optional("address", "Address", FieldString),
			optional("pincode", "PIN Code", FieldString),
			optional("vid", "Virtual ID (VID)", FieldString),
		},
		keywords: []string{
			"aadhaar", "uidai", "unique identification", "भारत सरकार",
			"government of india", "enrolment", "vid", "आधार",
		},
	}}
}

func (t aadhaarTemplate) PostProcess(fields map[string]any) map[string]any {
	out := copyFields(fields)
	if v := out["aadhaar_number"]; !isEmpty(v) {
		if n := compactID(v); len(n) == 12 && allDigits(n) {
			out["aadhaar_number"] = n[:4] + " " + n[4:8] + " " + n[8:]
		}
	}
	normalizeGender(out)
	return out
}

// PAN card issued by the Income Tax Department.
type panTemplate struct{ base }

func NewPAN() Template {
	return panTemplate{base{
		name:     "pan",
		category: constants.CategoryIDDocument,
		fields: []FieldDefinition{
			required("full_name", "Full Name", FieldString),
			required("pan_number", "PAN Number", FieldString).describe("10-character PAN (e.g., ABCDE1234F)"),
			optional("fathers_name", "Father's Name", FieldString),
			required("date_of_birth", "Date of Birth", FieldDate),
			optional("signature_name", "Name on Signature", FieldString),
		},
		keywords: []string{
			"permanent account number", "pan", "income tax", "आयकर विभाग",
			"govt. of india", "NSDL", "UTI",
		},
	}}
}

func (t panTemplate) PostProcess(fields map[string]any) map[string]any {
	out := copyFields(fields)
	if s, ok := stringify(out["pan_number"]); ok && s != "" {
		out["pan_number"] = strings.ToUpper(strings.TrimSpace(s))
	}
	return out
}

// Voter ID (EPIC) issued by the Election Commission.
type voterIDTemplate struct{ base }

func NewVoterID() Template {
	return voterIDTemplate{base{
		name:     "voter_id",
		category: constants.CategoryIDDocument,
		fields: []FieldDefinition{
			required("elector_name", "Elector's Name", FieldString),
			required("epic_number", "EPIC Number", FieldString).describe("Voter ID number"),
			optional("fathers_name", "Father's/Husband's Name", FieldString),
			optional("date_of_birth", "Date of Birth", FieldDate),
			optional("age", "Age", FieldNumber),
			optional("gender", "Gender", FieldString),
			optional("address", "Address", FieldString),
			optional("polling_station", "Polling Station", FieldString),
			optional("constituency", "Assembly Constituency", FieldString),
		},
		keywords: []string{
			"voter", "epic", "election commission", "elector", "polling",
			"निर्वाचन", "मतदाता", "assembly constituency",
		},
	}}
}

// Driving licence issued by a regional transport office.
type drivingLicenseTemplate struct{ base }

func NewDrivingLicense() Template {
	return drivingLicenseTemplate{base{
		name:     "driving_license",
		category: constants.CategoryIDDocument,
		fields: []FieldDefinition{
			required("holder_name", "Name of Holder", FieldString),
			required("license_number", "License Number", FieldString),
			required("date_of_birth", "Date of Birth", FieldDate),
			optional("blood_group", "Blood Group", FieldString),
			optional("fathers_name", "Father's/Husband's Name", FieldString),
			optional("address", "Address", FieldString),
			optional("issue_date", "Date of Issue", FieldDate),
			optional("valid_till", "Valid Till", FieldDate),
			optional("vehicle_classes", "Vehicle Class(es)", FieldString).describe("e.g., LMV, MCWG"),
			optional("issuing_authority", "Issuing Authority (RTO)", FieldString),
		},
		keywords: []string{
			"driving", "license", "licence", "motor vehicle", "rto", "transport",
			"lmv", "mcwg", "valid till", "blood group",
		},
	}}
}

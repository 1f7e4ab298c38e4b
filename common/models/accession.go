package models

// Staining statuses recorded on staining records
const (
	StainingStatusRejected = "Rejected"
)

// Patient demographics needed for outbound order messages
type Patient struct {
	MRN       string `db:"mrn" json:"mrn"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
}

// HL7Name renders the patient name in HL7 component form
func (p Patient) HL7Name() string {
	return p.LastName + "^" + p.FirstName
}

// Doctor is a referring or reporting physician on an accession
type Doctor struct {
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
}

// HL7Name renders the doctor name in HL7 component form, empty when absent
func (d *Doctor) HL7Name() string {
	if d == nil {
		return ""
	}
	return d.LastName + "^" + d.FirstName
}

// Accession is a patient case intake record. The HL7 sender reads it to
// populate outbound order demographics; this service never writes it.
type Accession struct {
	AccessionID     string  `db:"accession_id" json:"accession_id"`
	Patient         Patient `json:"patient"`
	ReferringDoctor *Doctor `json:"referring_doctor,omitempty"`
	ReportingDoctor *Doctor `json:"reporting_doctor,omitempty"`
}

package navigation

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// StepTemplate is one entry of a care pathway: a step definition with a due
// date expressed relative to journey initialization.
type StepTemplate struct {
	Stage       JourneyStage
	Key         string
	Name        string
	Description string
	IsRequired  bool
	DueInDays   int
}

// TemplatesFor returns the full pathway template for a cancer type, covering
// every journey stage up front so the whole journey is visible from day one.
// Unknown types get the generic pathway.
func TemplatesFor(cancerType string) []StepTemplate {
	switch strings.ToLower(cancerType) {
	case "colorectal":
		return colorectalPathway
	case "breast":
		return breastPathway
	default:
		return genericPathway
	}
}

var colorectalPathway = []StepTemplate{
	{StageScreening, "fecal_occult_blood", "Fecal Occult Blood Test", "Initial screening test for occult blood in stool", true, 30},
	{StageScreening, "colonoscopy", "Colonoscopy", "Screening or diagnostic colonoscopy when FOBT is positive or symptoms present", false, 60},
	{StageDiagnosis, "colonoscopy_with_biopsy", "Colonoscopy with Biopsy", "Colonoscopy with tissue collection for pathology", true, 14},
	{StageDiagnosis, "pathology_report", "Pathology Report", "Biopsy result confirming diagnosis and histological type", true, 21},
	{StageDiagnosis, "staging_ct_abdomen", "Abdominal and Pelvic CT", "CT scan for staging and metastasis assessment", true, 28},
	{StageDiagnosis, "staging_ct_thorax", "Thoracic CT", "Chest CT to assess pulmonary metastases", true, 28},
	{StageDiagnosis, "genetic_testing", "Genetic Testing (MSI, KRAS, NRAS, BRAF)", "Molecular tests to guide treatment in advanced disease", false, 35},
	{StageDiagnosis, "cea_baseline", "Baseline CEA", "Carcinoembryonic antigen baseline tumor marker", true, 14},
	{StageTreatment, "surgical_evaluation", "Surgical Evaluation", "Surgeon consultation for resection planning", true, 14},
	{StageTreatment, "colectomy", "Colectomy", "Surgical resection of the tumor", true, 42},
	{StageTreatment, "adjuvant_chemotherapy", "Adjuvant Chemotherapy", "Adjuvant chemotherapy for stage III or high-risk stage II", false, 90},
	{StageTreatment, "radiotherapy", "Radiotherapy", "Neoadjuvant or adjuvant radiotherapy for rectal cancer", false, 60},
	{StageFollowUp, "cea_3months", "CEA at 3 Months", "First post-treatment CEA measurement", true, 90},
	{StageFollowUp, "colonoscopy_1year", "Surveillance Colonoscopy (1 year)", "First surveillance colonoscopy one year after surgery", true, 365},
	{StageFollowUp, "ct_abdomen_annual", "Annual Abdominal CT", "Annual CT for recurrence surveillance", true, 365},
	{StageFollowUp, "colonoscopy_3years", "Surveillance Colonoscopy (3 years)", "Second surveillance colonoscopy", true, 1095},
}

var breastPathway = []StepTemplate{
	{StageScreening, "mammography", "Mammography", "Screening mammography", true, 30},
	{StageScreening, "breast_ultrasound", "Breast Ultrasound", "Complementary ultrasound for dense tissue or palpable findings", false, 45},
	{StageDiagnosis, "breast_biopsy", "Breast Biopsy", "Core needle biopsy of the suspicious lesion", true, 14},
	{StageDiagnosis, "pathology_report", "Pathology Report", "Biopsy result with histology and receptor panel", true, 21},
	{StageDiagnosis, "breast_mri", "Breast MRI", "MRI for local staging when indicated", false, 28},
	{StageDiagnosis, "staging_ct_thorax_abdomen", "Thoracic and Abdominal CT", "Staging CT for locally advanced disease", true, 28},
	{StageTreatment, "surgical_evaluation", "Surgical Evaluation", "Surgeon consultation for breast-conserving surgery or mastectomy", true, 14},
	{StageTreatment, "breast_surgery", "Breast Surgery", "Surgical treatment of the primary tumor", true, 42},
	{StageTreatment, "adjuvant_therapy", "Adjuvant Therapy", "Chemotherapy, endocrine therapy or radiotherapy per receptor profile", false, 90},
	{StageFollowUp, "followup_6months", "Follow-up Visit (6 months)", "First post-treatment follow-up consultation", true, 180},
	{StageFollowUp, "mammography_annual", "Annual Mammography", "Annual surveillance mammography", true, 365},
}

var genericPathway = []StepTemplate{
	{StageDiagnosis, "biopsy", "Biopsy", "Tissue collection for diagnosis", true, 14},
	{StageDiagnosis, "pathology_report", "Pathology Report", "Diagnostic confirmation and histological type", true, 21},
	{StageDiagnosis, "staging_imaging", "Staging Imaging", "CT or PET-CT to assess disease extent", true, 28},
	{StageTreatment, "treatment_planning", "Treatment Planning", "Define the therapeutic strategy", true, 14},
	{StageFollowUp, "follow_up_3months", "Follow-up Visit (3 months)", "First post-treatment consultation", true, 90},
	{StageFollowUp, "follow_up_6months", "Follow-up Visit (6 months)", "Second follow-up consultation", true, 180},
}

// Instantiate turns a template entry into a concrete pending step for the
// patient, with the due date anchored at now.
func (t StepTemplate) Instantiate(tenantID string, patientID uuid.UUID, now time.Time) *Step {
	due := now.AddDate(0, 0, t.DueInDays)
	desc := t.Description
	return &Step{
		ID:              uuid.New(),
		TenantID:        tenantID,
		PatientID:       patientID,
		JourneyStage:    t.Stage,
		StepKey:         t.Key,
		StepName:        t.Name,
		StepDescription: &desc,
		Status:          StatusPending,
		IsRequired:      t.IsRequired,
		DueDate:         &due,
	}
}

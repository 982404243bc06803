package enum

type Eligibility string

const (
	EligibilityNone                     Eligibility = ""
	EligibilityNotEligible              Eligibility = "not_eligible"
	EligibilityAutoSubstantiation       Eligibility = "auto_substantiation"
	EligibilityLetterOfMedicalNecessity Eligibility = "letter_of_medical_necessity"
)

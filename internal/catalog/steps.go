// Package catalog holds the static DS-160 workflow data: the ordered step
// definitions with their field bindings, the shared country-code table, and
// the captcha widget spec. Everything here is configuration, not logic; the
// engine is parameterized by it.
package catalog

import "github.com/applyflow/ds160-runner/api/schemas"

// fv prefixes a control id with the CEAC FormView container path.
func fv(id string) string {
	return "#ctl00_SiteContentPlaceHolder_FormView1_" + id
}

// Captcha locates the site's challenge widget, identical at every checkpoint.
var Captcha = schemas.CaptchaSpec{
	ImageSelector:   "#c_default_ctl00_sitecontentplaceholder_uccaptcha10_defaultcaptcha_CaptchaImage",
	InputSelector:   "#ctl00_SiteContentPlaceHolder_ucLocation_IdentifyCaptcha1_txtCodeTextBox",
	AdvanceSelector: "#ctl00_SiteContentPlaceHolder_btnNew",
	ErrorPhrase:     "The code you entered does not match the code displayed on the page",
	NextURLFragment: "SecureQuestion.aspx",
}

// yesNoField builds a mapping for the site's rbl Yes/No radio groups. Each
// choice is its own input element, so the options table routes the mapped
// value to the input that must be clicked.
func yesNoField(key, id string) schemas.FieldMapping {
	return schemas.FieldMapping{
		Key:      key,
		Type:     schemas.FieldRadio,
		Selector: fv(id) + "_0",
		ValueMap: map[string]string{"Yes": "Y", "No": "N"},
		Options: map[string]string{
			"Y": fv(id) + "_0",
			"N": fv(id) + "_1",
		},
	}
}

// Steps returns the full 17-step DS-160 catalog in execution order. Field
// lists are the load-bearing subset per page; the engine skips any key the
// form-data bag does not carry.
func Steps() []schemas.StepDefinition {
	return []schemas.StepDefinition{
		{
			Number:            1,
			Name:              "Get Started",
			CaptchaCheckpoint: true,
			AdvanceSelector:   "#ctl00_SiteContentPlaceHolder_btnNew",
			Markers: schemas.StepMarkers{
				URLFragment:    "Default.aspx",
				MarkerSelector: "#lblBarcode",
			},
			Fields: []schemas.FieldMapping{
				{
					Key:      "application.embassy_location",
					Selector: "#ctl00_SiteContentPlaceHolder_ucLocation_ddlLocation",
					Type:     schemas.FieldSelect,
				},
			},
		},
		{
			Number:          2,
			Name:            "Personal Information 1",
			AdvanceSelector: fv("UpdateButton3"),
			Markers: schemas.StepMarkers{
				URLFragment:    "complete_personal.aspx",
				MarkerSelector: fv("tbxAPP_SURNAME"),
			},
			Fields: []schemas.FieldMapping{
				{Key: "personal.surname", Selector: fv("tbxAPP_SURNAME"), Type: schemas.FieldText},
				{Key: "personal.given_name", Selector: fv("tbxAPP_GIVEN_NAME"), Type: schemas.FieldText},
				{Key: "personal.full_name_native", Selector: fv("tbxAPP_FULL_NAME_NATIVE"), Type: schemas.FieldText},
				yesNoField("personal.other_names_used", "rblOtherNames"),
				{
					Key:      "personal.sex",
					Selector: fv("ddlAPP_GENDER"),
					Type:     schemas.FieldSelect,
					ValueMap: map[string]string{"Male": "M", "Female": "F"},
				},
				{
					Key:      "personal.marital_status",
					Selector: fv("ddlAPP_MARITAL_STATUS"),
					Type:     schemas.FieldSelect,
					ValueMap: map[string]string{
						"Married": "M", "Single": "S", "Divorced": "D",
						"Widowed": "W", "Separated": "L",
					},
				},
				{
					Key:  "personal.date_of_birth",
					Type: schemas.FieldDateSplit,
					Split: []schemas.SplitPart{
						{Selector: fv("ddlDOBDay"), Segment: schemas.SegmentDay, Format: schemas.FormatZeroPadded},
						{Selector: fv("ddlDOBMonth"), Segment: schemas.SegmentMonth, Format: schemas.FormatMonthAbbr},
						{Selector: fv("tbxDOBYear"), Segment: schemas.SegmentYear, Format: schemas.FormatNumeric},
					},
				},
				{Key: "personal.birth_city", Selector: fv("tbxAPP_POB_CITY"), Type: schemas.FieldText},
				{
					Key:      "personal.birth_country",
					Selector: fv("ddlAPP_POB_CNTRY"),
					Type:     schemas.FieldSelect,
					ValueMap: CountryCodes(),
				},
			},
		},
		{
			Number:          3,
			Name:            "Personal Information 2",
			AdvanceSelector: fv("UpdateButton3"),
			Markers: schemas.StepMarkers{
				URLFragment:    "complete_personalcont.aspx",
				MarkerSelector: fv("ddlAPP_NATL"),
			},
			Fields: []schemas.FieldMapping{
				{
					Key:      "personal.nationality",
					Selector: fv("ddlAPP_NATL"),
					Type:     schemas.FieldSelect,
					ValueMap: CountryCodes(),
				},
				yesNoField("personal.other_nationality", "rblAPP_OTH_NATL_IND"),
				{Key: "personal.national_id", Selector: fv("tbxAPP_NATIONAL_ID"), Type: schemas.FieldText},
				{Key: "personal.us_ssn", Selector: fv("tbxAPP_SSN1"), Type: schemas.FieldText},
			},
		},
		{
			Number:          4,
			Name:            "Address and Phone",
			AdvanceSelector: fv("UpdateButton3"),
			Markers: schemas.StepMarkers{
				URLFragment:    "complete_contact.aspx",
				MarkerSelector: fv("tbxAPP_ADDR_LN1"),
			},
			Fields: []schemas.FieldMapping{
				{Key: "contact.home_street", Selector: fv("tbxAPP_ADDR_LN1"), Type: schemas.FieldText},
				{Key: "contact.home_city", Selector: fv("tbxAPP_ADDR_CITY"), Type: schemas.FieldText},
				{Key: "contact.home_state", Selector: fv("tbxAPP_ADDR_STATE"), Type: schemas.FieldText},
				{Key: "contact.home_postal_code", Selector: fv("tbxAPP_ADDR_POSTAL_CD"), Type: schemas.FieldText},
				{
					Key:      "contact.home_country",
					Selector: fv("ddlCountry"),
					Type:     schemas.FieldSelect,
					ValueMap: CountryCodes(),
				},
				{Key: "contact.primary_phone", Selector: fv("tbxAPP_HOME_TEL"), Type: schemas.FieldText},
				{Key: "contact.email", Selector: fv("tbxAPP_EMAIL_ADDR"), Type: schemas.FieldText},
			},
		},
		{
			Number:          5,
			Name:            "Passport Information",
			AdvanceSelector: fv("UpdateButton3"),
			Markers: schemas.StepMarkers{
				URLFragment:    "complete_passport.aspx",
				MarkerSelector: fv("tbxPPT_NUM"),
			},
			Fields: []schemas.FieldMapping{
				{
					Key:      "passport.type",
					Selector: fv("ddlPPT_TYPE"),
					Type:     schemas.FieldSelect,
					ValueMap: map[string]string{"Regular": "R", "Official": "O", "Diplomatic": "D"},
				},
				{Key: "passport.number", Selector: fv("tbxPPT_NUM"), Type: schemas.FieldText},
				{
					Key:      "passport.issuing_country",
					Selector: fv("ddlPPT_ISSUED_CNTRY"),
					Type:     schemas.FieldSelect,
					ValueMap: CountryCodes(),
				},
				{Key: "passport.issuing_city", Selector: fv("tbxPPT_ISSUED_IN_CITY"), Type: schemas.FieldText},
				{
					Key:  "passport.issue_date",
					Type: schemas.FieldDateSplit,
					Split: []schemas.SplitPart{
						{Selector: fv("ddlPPT_ISSUED_DTEDay"), Segment: schemas.SegmentDay, Format: schemas.FormatZeroPadded},
						{Selector: fv("ddlPPT_ISSUED_DTEMonth"), Segment: schemas.SegmentMonth, Format: schemas.FormatMonthAbbr},
						{Selector: fv("tbxPPT_ISSUEDYear"), Segment: schemas.SegmentYear, Format: schemas.FormatNumeric},
					},
				},
				{
					Key:  "passport.expiry_date",
					Type: schemas.FieldDateSplit,
					Split: []schemas.SplitPart{
						{Selector: fv("ddlPPT_EXPIRE_DTEDay"), Segment: schemas.SegmentDay, Format: schemas.FormatZeroPadded},
						{Selector: fv("ddlPPT_EXPIRE_DTEMonth"), Segment: schemas.SegmentMonth, Format: schemas.FormatMonthAbbr},
						{Selector: fv("tbxPPT_EXPIREYear"), Segment: schemas.SegmentYear, Format: schemas.FormatNumeric},
					},
				},
				yesNoField("passport.ever_lost", "rblLOST_PPT_IND"),
			},
		},
		{
			Number:          6,
			Name:            "Travel Information",
			AdvanceSelector: fv("UpdateButton3"),
			Markers: schemas.StepMarkers{
				URLFragment:    "complete_travel.aspx",
				MarkerSelector: fv("ddlPurposeOfTrip"),
			},
			Fields: []schemas.FieldMapping{
				{
					Key:      "travel_info.purpose_of_trip",
					Selector: fv("ddlPurposeOfTrip"),
					Type:     schemas.FieldSelect,
					ValueMap: map[string]string{
						"BUSINESS/TOURISM": "B", "STUDENT": "F", "EXCHANGE": "J",
						"WORK": "H", "CREW": "C",
					},
					Conditional: &schemas.ConditionalTrigger{
						TriggerValue: "B",
						Revealed: []schemas.FieldMapping{
							{
								Key:      "travel_info.purpose_specify",
								Selector: fv("ddlOtherPurpose"),
								Type:     schemas.FieldSelect,
								ValueMap: map[string]string{"TOURISM": "B2", "BUSINESS": "B1", "BOTH": "B1-B2"},
							},
						},
					},
				},
				yesNoField("travel_info.specific_plans", "rblSpecificTravel"),
				{
					Key:  "travel_info.arrival_date",
					Type: schemas.FieldDateSplit,
					Split: []schemas.SplitPart{
						{Selector: fv("ddlTRAVEL_DTEDay"), Segment: schemas.SegmentDay, Format: schemas.FormatZeroPadded},
						{Selector: fv("ddlTRAVEL_DTEMonth"), Segment: schemas.SegmentMonth, Format: schemas.FormatMonthAbbr},
						{Selector: fv("tbxTRAVEL_DTEYear"), Segment: schemas.SegmentYear, Format: schemas.FormatNumeric},
					},
				},
				{Key: "travel_info.stay_length", Selector: fv("tbxTRAVEL_LOS"), Type: schemas.FieldText},
				{
					Key:      "travel_info.stay_unit",
					Selector: fv("ddlTRAVEL_LOS_CD"),
					Type:     schemas.FieldSelect,
					ValueMap: map[string]string{"Days": "D", "Weeks": "W", "Months": "M", "Years": "Y"},
				},
				{Key: "travel_info.us_address", Selector: fv("tbxStreetAddress1"), Type: schemas.FieldText},
				{
					Key:      "travel_info.trip_payer",
					Selector: fv("ddlWhoIsPaying"),
					Type:     schemas.FieldSelect,
					ValueMap: map[string]string{"Self": "S", "Other Person": "O", "Employer": "P", "US Petitioner": "U"},
				},
			},
		},
		{
			Number:          7,
			Name:            "Travel Companions",
			AdvanceSelector: fv("UpdateButton3"),
			Markers: schemas.StepMarkers{
				URLFragment:    "complete_travelcompanions.aspx",
				MarkerSelector: fv("rblOtherPersonsTravelingWithYou_0"),
			},
			Fields: []schemas.FieldMapping{
				{
					Key:      "companions.traveling_with_others",
					Selector: fv("rblOtherPersonsTravelingWithYou_0"),
					Type:     schemas.FieldRadio,
					ValueMap: map[string]string{"Yes": "Y", "No": "N"},
					Options: map[string]string{
						"Y": fv("rblOtherPersonsTravelingWithYou_0"),
						"N": fv("rblOtherPersonsTravelingWithYou_1"),
					},
					Conditional: &schemas.ConditionalTrigger{
						TriggerValue: "Y",
						Revealed: []schemas.FieldMapping{
							{Key: "companions.companion_surname", Selector: fv("dlTravelCompanions_ctl00_tbxSurname"), Type: schemas.FieldText},
							{Key: "companions.companion_given_name", Selector: fv("dlTravelCompanions_ctl00_tbxGivenName"), Type: schemas.FieldText},
							{
								Key:      "companions.companion_relationship",
								Selector: fv("dlTravelCompanions_ctl00_ddlTCRelationship"),
								Type:     schemas.FieldSelect,
								ValueMap: map[string]string{"Spouse": "S", "Child": "C", "Parent": "P", "Friend": "F", "Business Associate": "B"},
							},
						},
					},
				},
			},
		},
		{
			Number:          8,
			Name:            "Previous US Travel",
			AdvanceSelector: fv("UpdateButton3"),
			Markers: schemas.StepMarkers{
				URLFragment:    "complete_previousustravel.aspx",
				MarkerSelector: fv("rblPREV_US_TRAVEL_IND_0"),
			},
			Fields: []schemas.FieldMapping{
				{
					Key:      "us_history.been_in_us",
					Selector: fv("rblPREV_US_TRAVEL_IND_0"),
					Type:     schemas.FieldRadio,
					ValueMap: map[string]string{"Yes": "Y", "No": "N"},
					Options: map[string]string{
						"Y": fv("rblPREV_US_TRAVEL_IND_0"),
						"N": fv("rblPREV_US_TRAVEL_IND_1"),
					},
					Conditional: &schemas.ConditionalTrigger{
						TriggerValue: "Y",
						Revealed: []schemas.FieldMapping{
							{
								Key:  "us_history.last_visit_date",
								Type: schemas.FieldDateSplit,
								Split: []schemas.SplitPart{
									{Selector: fv("dtlPREV_US_VISIT_ctl00_ddlPREV_US_VISIT_DTEDay"), Segment: schemas.SegmentDay, Format: schemas.FormatZeroPadded},
									{Selector: fv("dtlPREV_US_VISIT_ctl00_ddlPREV_US_VISIT_DTEMonth"), Segment: schemas.SegmentMonth, Format: schemas.FormatMonthAbbr},
									{Selector: fv("dtlPREV_US_VISIT_ctl00_tbxPREV_US_VISIT_DTEYear"), Segment: schemas.SegmentYear, Format: schemas.FormatNumeric},
								},
							},
							{Key: "us_history.last_visit_length", Selector: fv("dtlPREV_US_VISIT_ctl00_tbxPREV_US_VISIT_LOS"), Type: schemas.FieldText},
							{
								Key:      "us_history.had_driver_license",
								Selector: fv("rblPREV_US_DRIVER_LIC_IND_0"),
								Type:     schemas.FieldRadio,
								ValueMap: map[string]string{"Yes": "Y", "No": "N"},
								Options: map[string]string{
									"Y": fv("rblPREV_US_DRIVER_LIC_IND_0"),
									"N": fv("rblPREV_US_DRIVER_LIC_IND_1"),
								},
								Conditional: &schemas.ConditionalTrigger{
									TriggerValue: "Y",
									Revealed: []schemas.FieldMapping{
										{Key: "us_history.driver_license_number", Selector: fv("dtlUS_DRIVER_LICENSE_ctl00_tbxUS_DRIVER_LICENSE"), Type: schemas.FieldText},
										{Key: "us_history.driver_license_state", Selector: fv("dtlUS_DRIVER_LICENSE_ctl00_ddlUS_DRIVER_LICENSE_STATE"), Type: schemas.FieldSelect},
									},
								},
							},
						},
					},
				},
				yesNoField("us_history.had_us_visa", "rblPREV_VISA_IND"),
				yesNoField("us_history.visa_refused", "rblPREV_VISA_REFUSED_IND"),
			},
		},
		{
			Number:          9,
			Name:            "US Point of Contact",
			AdvanceSelector: fv("UpdateButton3"),
			Markers: schemas.StepMarkers{
				URLFragment:    "complete_uscontact.aspx",
				MarkerSelector: fv("tbxUS_POC_SURNAME"),
			},
			Fields: []schemas.FieldMapping{
				{Key: "us_contact.surname", Selector: fv("tbxUS_POC_SURNAME"), Type: schemas.FieldText},
				{Key: "us_contact.given_name", Selector: fv("tbxUS_POC_GIVEN_NAME"), Type: schemas.FieldText},
				{Key: "us_contact.organization", Selector: fv("tbxUS_POC_ORGANIZATION"), Type: schemas.FieldText},
				{
					Key:      "us_contact.relationship",
					Selector: fv("ddlUS_POC_REL_TO_APP"),
					Type:     schemas.FieldSelect,
					ValueMap: map[string]string{"Relative": "R", "Friend": "F", "Business Associate": "B", "Employer": "E", "School Official": "S", "Other": "O"},
				},
				{Key: "us_contact.street", Selector: fv("tbxUS_POC_ADDR_LN1"), Type: schemas.FieldText},
				{Key: "us_contact.city", Selector: fv("tbxUS_POC_ADDR_CITY"), Type: schemas.FieldText},
				{Key: "us_contact.phone", Selector: fv("tbxUS_POC_HOME_TEL"), Type: schemas.FieldText},
			},
		},
		{
			Number:          10,
			Name:            "Family Information",
			AdvanceSelector: fv("UpdateButton3"),
			Markers: schemas.StepMarkers{
				URLFragment:    "complete_family1.aspx",
				MarkerSelector: fv("tbxFATHER_SURNAME"),
			},
			Fields: []schemas.FieldMapping{
				{Key: "family.father_surname", Selector: fv("tbxFATHER_SURNAME"), Type: schemas.FieldText},
				{Key: "family.father_given_name", Selector: fv("tbxFATHER_GIVEN_NAME"), Type: schemas.FieldText},
				yesNoField("family.father_in_us", "rblFATHER_LIVE_IN_US_IND"),
				{Key: "family.mother_surname", Selector: fv("tbxMOTHER_SURNAME"), Type: schemas.FieldText},
				{Key: "family.mother_given_name", Selector: fv("tbxMOTHER_GIVEN_NAME"), Type: schemas.FieldText},
				yesNoField("family.mother_in_us", "rblMOTHER_LIVE_IN_US_IND"),
				yesNoField("family.immediate_relatives_in_us", "rblUS_IMMED_RELATIVE_IND"),
			},
		},
		{
			Number:          11,
			Name:            "Work/Education Present",
			AdvanceSelector: fv("UpdateButton3"),
			Markers: schemas.StepMarkers{
				URLFragment:    "complete_workeducation1.aspx",
				MarkerSelector: fv("ddlPresentOccupation"),
			},
			Fields: []schemas.FieldMapping{
				{
					Key:      "work.present_occupation",
					Selector: fv("ddlPresentOccupation"),
					Type:     schemas.FieldSelect,
					ValueMap: map[string]string{
						"Business": "B", "Computer Science": "CS", "Education": "ED",
						"Engineering": "EN", "Government": "G", "Homemaker": "H",
						"Medical/Health": "MH", "Retired": "RT", "Student": "S",
						"Not Employed": "N", "Other": "O",
					},
				},
				{Key: "work.employer_name", Selector: fv("tbxEmpSchName"), Type: schemas.FieldText},
				{Key: "work.employer_street", Selector: fv("tbxEmpSchAddr1"), Type: schemas.FieldText},
				{Key: "work.employer_city", Selector: fv("tbxEmpSchCity"), Type: schemas.FieldText},
				{
					Key:      "work.employer_country",
					Selector: fv("ddlEmpSchCountry"),
					Type:     schemas.FieldSelect,
					ValueMap: CountryCodes(),
				},
				{Key: "work.monthly_income", Selector: fv("tbxCURR_MONTHLY_SALARY"), Type: schemas.FieldText},
				{Key: "work.duties", Selector: fv("tbxDescribeDuties"), Type: schemas.FieldTextarea},
			},
		},
		{
			Number:          12,
			Name:            "Work/Education Previous",
			AdvanceSelector: fv("UpdateButton3"),
			Markers: schemas.StepMarkers{
				URLFragment:    "complete_workeducation2.aspx",
				MarkerSelector: fv("rblPreviouslyEmployed_0"),
			},
			Fields: []schemas.FieldMapping{
				{
					Key:      "work.previously_employed",
					Selector: fv("rblPreviouslyEmployed_0"),
					Type:     schemas.FieldRadio,
					ValueMap: map[string]string{"Yes": "Y", "No": "N"},
					Options: map[string]string{
						"Y": fv("rblPreviouslyEmployed_0"),
						"N": fv("rblPreviouslyEmployed_1"),
					},
					Conditional: &schemas.ConditionalTrigger{
						TriggerValue: "Y",
						Revealed: []schemas.FieldMapping{
							{Key: "work.previous_employer_name", Selector: fv("dtlPrevEmpl_ctl00_tbEmployerName"), Type: schemas.FieldText},
							{Key: "work.previous_job_title", Selector: fv("dtlPrevEmpl_ctl00_tbJobTitle"), Type: schemas.FieldText},
						},
					},
				},
				yesNoField("education.attended_institutions", "rblOtherEduc"),
			},
		},
		{
			Number:          13,
			Name:            "Work/Education Additional",
			AdvanceSelector: fv("UpdateButton3"),
			Markers: schemas.StepMarkers{
				URLFragment:    "complete_workeducation3.aspx",
				MarkerSelector: fv("rblCLAN_TRIBE_IND_0"),
			},
			Fields: []schemas.FieldMapping{
				yesNoField("background.clan_or_tribe", "rblCLAN_TRIBE_IND"),
				{Key: "background.languages", Selector: fv("dtlLANGUAGES_ctl00_tbxLANGUAGE_NAME"), Type: schemas.FieldText},
				yesNoField("background.traveled_last_five_years", "rblCOUNTRIES_VISITED_IND"),
				yesNoField("background.military_service", "rblMILITARY_SERVICE_IND"),
			},
		},
		{
			Number:          14,
			Name:            "Security and Background 1",
			AdvanceSelector: fv("UpdateButton3"),
			Markers: schemas.StepMarkers{
				URLFragment:    "complete_securityandbackground1.aspx",
				MarkerSelector: fv("rblDisease_0"),
			},
			Fields: []schemas.FieldMapping{
				yesNoField("security.communicable_disease", "rblDisease"),
				yesNoField("security.mental_disorder", "rblDisorder"),
				yesNoField("security.drug_abuser", "rblDruguser"),
			},
		},
		{
			Number:          15,
			Name:            "Security and Background 2",
			AdvanceSelector: fv("UpdateButton3"),
			Markers: schemas.StepMarkers{
				URLFragment:    "complete_securityandbackground2.aspx",
				MarkerSelector: fv("rblArrested_0"),
			},
			Fields: []schemas.FieldMapping{
				yesNoField("security.ever_arrested", "rblArrested"),
				yesNoField("security.controlled_substances", "rblControlledSubstances"),
				yesNoField("security.prostitution", "rblProstitution"),
				yesNoField("security.money_laundering", "rblMoneyLaundering"),
			},
		},
		{
			Number:          16,
			Name:            "Security and Background 3",
			AdvanceSelector: fv("UpdateButton3"),
			Markers: schemas.StepMarkers{
				URLFragment:    "complete_securityandbackground3.aspx",
				MarkerSelector: fv("rblIllegalActivity_0"),
			},
			Fields: []schemas.FieldMapping{
				yesNoField("security.espionage", "rblIllegalActivity"),
				yesNoField("security.terrorist_activities", "rblTerroristActivity"),
				yesNoField("security.terrorist_org_member", "rblTerroristOrg"),
				yesNoField("security.genocide", "rblGenocide"),
				yesNoField("security.torture", "rblTorture"),
			},
		},
		{
			Number:          17,
			Name:            "Security and Background 4",
			AdvanceSelector: fv("UpdateButton3"),
			Markers: schemas.StepMarkers{
				URLFragment:    "complete_securityandbackground4.aspx",
				MarkerSelector: fv("rblRemovalHearing_0"),
			},
			Fields: []schemas.FieldMapping{
				yesNoField("security.removal_hearing", "rblRemovalHearing"),
				yesNoField("security.immigration_fraud", "rblImmigrationFraud"),
				yesNoField("security.failed_to_attend_hearing", "rblFailToAttend"),
				yesNoField("security.visa_violation", "rblVisaViolation"),
			},
		},
	}
}

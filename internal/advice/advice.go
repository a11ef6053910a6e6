// Package advice serves per-hazard safety instructions.
package advice

import (
	"fmt"

	"github.com/mr1hm/go-shelter-alerts/internal/models"
)

type Instructions struct {
	HazardType models.HazardType `json:"hazard_type"`
	Title      string            `json:"title"`
	Steps      []string          `json:"steps"`
	DoNot      []string          `json:"do_not"`
	ETAHint    string            `json:"eta_hint"`
}

type entry struct {
	title string
	steps []string
	doNot []string
	hint  string // printf format taking whole minutes
}

var catalog = map[models.HazardType]entry{
	models.HazardAirRaid: {
		title: "Air Raid Alert - Take Immediate Shelter",
		steps: []string{"Go to the shelter immediately", "Keep to the lowest floor and away from windows", "Stay until the all-clear is given"},
		doNot: []string{"Do not use elevators", "Do not stop for belongings"},
		hint:  "Move quickly - you have %d minutes to reach safety",
	},
	models.HazardDrone: {
		title: "Hostile Drone Alert - Seek Cover",
		steps: []string{"Get indoors or under solid cover", "Keep away from windows and open ground", "Follow official channels for updates"},
		doNot: []string{"Do not gather outside to watch", "Do not point lights at the drone"},
		hint:  "Seek immediate cover - shelter in %d minutes",
	},
	models.HazardMissile: {
		title: "Incoming Missile - Take Shelter NOW",
		steps: []string{"Take cover in the nearest solid building", "Go to the lowest floor away from glass", "If caught in the open lie flat and cover your head"},
		doNot: []string{"Do not stay in open areas", "Do not stand near windows"},
		hint:  "URGENT: Only %d minutes to reach shelter - RUN",
	},
	models.HazardFlood: {
		title: "Flood Warning - Evacuate to Higher Ground",
		steps: []string{"Move to higher ground", "Go to upper floors if trapped indoors", "Signal for help if stranded"},
		doNot: []string{"Do not drive through flooded roads", "Do not walk in moving water"},
		hint:  "Move to high ground - %d minutes before conditions worsen",
	},
	models.HazardFire: {
		title: "Fire Emergency - Evacuate Safely",
		steps: []string{"Leave by the safest exit", "Stay low under smoke", "Check doors for heat before opening"},
		doNot: []string{"Do not use elevators", "Do not go back inside"},
		hint:  "Evacuate now - safe area %d minutes away",
	},
	models.HazardIndustrial: {
		title: "Industrial Hazard - Follow Evacuation Orders",
		steps: []string{"Follow official evacuation instructions", "Move crosswind from any release", "Close windows and turn off ventilation if sheltering"},
		doNot: []string{"Do not approach the site", "Do not run air conditioning during a chemical release"},
		hint:  "Follow evacuation plan - safe zone %d minutes away",
	},
	models.HazardShooting: {
		title: "Active Shooter - Run, Hide, Fight",
		steps: []string{"Run if there is a safe way out", "Otherwise hide behind a locked door and silence your phone", "Call emergency services when safe"},
		doNot: []string{"Do not use elevators", "Do not confront the attacker unless there is no other option"},
		hint:  "Immediate action required - safe zone %d minutes away",
	},
	models.HazardStorm: {
		title: "Severe Storm - Seek Sturdy Shelter",
		steps: []string{"Get inside a sturdy building", "Stay in an interior room", "Keep clear of trees and power lines"},
		doNot: []string{"Do not shelter under trees", "Do not touch fallen cables"},
		hint:  "Seek shelter now - storm intensifying, safe building %d minutes away",
	},
	models.HazardTsunami: {
		title: "Tsunami Warning - Move to High Ground NOW",
		steps: []string{"Move inland and uphill immediately", "Go on foot if roads are blocked", "Stay away from the coast until authorities allow"},
		doNot: []string{"Do not go to the shore to watch", "Do not return after the first wave"},
		hint:  "CRITICAL: Move to high ground - evacuation point %d minutes away",
	},
	models.HazardChemicalWeapon: {
		title: "Chemical Weapon Attack - Protect Airways",
		steps: []string{"Cover your nose and mouth", "Move upwind and to higher floors", "Remove and bag outer clothing, then wash exposed skin"},
		doNot: []string{"Do not touch suspicious liquids or powders", "Do not go to basements"},
		hint:  "Immediate protection needed - decontamination facility %d minutes away",
	},
	models.HazardBiohazard: {
		title: "Biological Hazard - Avoid Contamination",
		steps: []string{"Wear a mask and gloves if available", "Wash hands often", "Report symptoms to medical services"},
		doNot: []string{"Do not touch your face", "Do not share food or water"},
		hint:  "Minimize exposure - medical facility %d minutes away",
	},
	models.HazardNuclear: {
		title: "Nuclear Emergency - Shelter and Protect",
		steps: []string{"Get inside and go to the building's center or basement", "Close windows and shut off ventilation", "Stay tuned to official broadcasts"},
		doNot: []string{"Do not go outside to look", "Do not eat food that may be contaminated"},
		hint:  "Shelter in place - radiation protection facility %d minutes away",
	},
	models.HazardUnmarkedSoldiers: {
		title: "Unmarked Military Personnel - Avoid and Report",
		steps: []string{"Leave the area calmly", "Report the location to authorities", "Stay indoors if you cannot leave"},
		doNot: []string{"Do not approach or film them", "Do not share their position publicly"},
		hint:  "Avoid area - safe zone %d minutes away",
	},
	models.HazardPandemic: {
		title: "Pandemic Alert - Protect Yourself and Others",
		steps: []string{"Wear a mask in shared spaces", "Keep your distance from others", "Follow public health guidance"},
		doNot: []string{"Do not attend crowded gatherings", "Do not go to work when ill"},
		hint:  "Follow health protocols - medical facility %d minutes away if needed",
	},
	models.HazardTerroristAttack: {
		title: "Terrorist Attack - Run, Hide, Fight",
		steps: []string{"Get away from the scene", "Hide if escape is not possible", "Call emergency services when safe"},
		doNot: []string{"Do not gather near the scene", "Do not spread unverified information"},
		hint:  "Immediate action required - safe area %d minutes away",
	},
	models.HazardMassPoisoning: {
		title: "Mass Poisoning Event - Avoid Contamination",
		steps: []string{"Stop eating or drinking anything suspect", "Seek medical help if you feel unwell", "Keep samples for investigators"},
		doNot: []string{"Do not induce vomiting unless told to", "Do not drink tap water until cleared"},
		hint:  "Seek medical attention - hospital %d minutes away",
	},
	models.HazardCyberAttack: {
		title: "Cyber Attack - Protect Digital Assets",
		steps: []string{"Disconnect affected devices from the network", "Change passwords from a clean device", "Report the incident"},
		doNot: []string{"Do not open unexpected links or attachments", "Do not pay ransom demands"},
		hint:  "Secure systems immediately - IT support center %d minutes away",
	},
	models.HazardEarthquake: {
		title: "Earthquake - Drop, Cover, and Hold On",
		steps: []string{"Drop, take cover under sturdy furniture, hold on", "Once shaking stops, leave carefully", "Expect aftershocks"},
		doNot: []string{"Do not use elevators", "Do not stand near glass or tall furniture"},
		hint:  "Take immediate cover - aftershocks possible, safe assembly area %d minutes away",
	},
}

var fallback = entry{
	title: "Emergency Alert - Seek Safety",
	steps: []string{"Follow instructions from local authorities", "Move to the nearest shelter", "Keep your phone charged and on"},
	doNot: []string{"Do not ignore official instructions", "Do not spread unverified information"},
	hint:  "Proceed to safety - %d minutes to shelter",
}

// For returns instructions for hazard with an ETA hint in whole minutes.
// Unknown hazards get generic advice.
func For(hazard models.HazardType, etaSeconds int) Instructions {
	e, ok := catalog[hazard]
	if !ok {
		e = fallback
	}
	if etaSeconds < 0 {
		etaSeconds = 0
	}
	return Instructions{
		HazardType: hazard,
		Title:      e.title,
		Steps:      e.steps,
		DoNot:      e.doNot,
		ETAHint:    fmt.Sprintf(e.hint, etaSeconds/60),
	}
}

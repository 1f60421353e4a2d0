package corpus

import "github.com/ppiankov/credence/internal/model"

// Sample returns the built-in demonstration corpus: five short internal
// documents of a fictional company
func Sample() model.Corpus {
	return model.Corpus{
		"CredibleMind AI Guidelines: Verified claims must have at least two independent primary sources. Partially supported claims are those that align with general consensus but lack specific document citations. Unsupported claims are those that directly contradict known verified data sets.",
		"Financial Report 2024: The company saw a 15% increase in revenue compared to Q3 2023. Operating costs were reduced by 5% through automation.",
		"Environmental Sustainability Initiative: We have successfully planted 1.2 million trees since 2021. Our goal is to achieve carbon neutrality by 2030.",
		"Product Roadmap: Version 2.0 of the core AI engine is scheduled for release in November 2024. It will feature real-time claim extraction.",
		"User Privacy Policy: All user data is encrypted with AES-256 standards and stored in ISO 27001 certified data centers.",
	}
}

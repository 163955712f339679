// Package filename recovers series and episode metadata from human-authored
// TAF filenames such as
// "Margit_Auer_-_Die_Schule_der_magischen_Tiere_-_Hoerspiel_-_Folge_01.taf".
//
// Parse applies an ordered cascade of patterns and never fails. The helpers
// NormalizeSeriesName and ExtractSearchTerms prepare parsed values for catalog
// matching and cover search.
package filename

// Package language normalizes the language labels found on catalog entries
// and selections to the lowercase language-region tags the Toniebox catalog
// uses ("de-de", "en-us").
package language

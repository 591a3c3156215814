// Package domain defines core data models, the error taxonomy and the
// interfaces shared across the app. It contains plain types (wire/state) and
// contracts (interfaces) only.
package domain

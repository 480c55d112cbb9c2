package errors

// Error code constants organized by phase
// E001-E099: Lexer errors
// E100-E199: Parser errors
// E200-E299: Meta-object model errors
// E300-E399: Composer errors
// E400-E499: Synthesis errors
// E500-E599: Backend errors

const (
	// Lexer errors (E001-E099)
	ErrUnterminatedString = "E001"
	ErrInvalidCharacter   = "E002"
	ErrInvalidNumber      = "E003"
	ErrInvalidEscape      = "E004"

	// Parser errors (E100-E199)
	ErrUnexpectedToken    = "E100"
	ErrExpectedIdentifier = "E101"
	ErrExpectedType       = "E102"
	ErrInvalidMember      = "E103"
	ErrInvalidAnnotation  = "E104"
	ErrInvalidAttribute   = "E105"
	ErrDuplicateType      = "E106"
	ErrDuplicateMember    = "E107"

	// Meta-object model errors (E200-E299)
	ErrNotReflectable  = "E200"
	ErrInvalidHandle   = "E201"
	ErrReflectionCycle = "E202"

	// Composer errors (E300-E399)
	ErrUnsatisfiedDependency = "E300"
	ErrCompositionConflict   = "E301"
	ErrUnknownMetaclass      = "E302"
	ErrDependencyCycle       = "E303"

	// Synthesis errors (E400-E499)
	ErrConstraintViolation = "E400"
	ErrDuplicateFragment   = "E401"

	// Backend errors (E500-E599)
	ErrMissingPrimaryKey     = "E500"
	ErrUnsupportedMemberType = "E501"
	ErrUnknownFormat         = "E502"
)

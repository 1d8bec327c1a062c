// Package errors provides centralized error handling with optional reporting hooks
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"path"
	"runtime"
	"strings"
	"sync"
	"time"
)

// ErrorCategory represents the type of error for better categorization
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryFileIO        ErrorCategory = "file-io"
	CategoryFileParsing   ErrorCategory = "file-parsing"
	CategoryImageDecode   ErrorCategory = "image-decode"
	CategoryNetwork       ErrorCategory = "network"
	CategoryDatabase      ErrorCategory = "database"
	CategoryHTTP          ErrorCategory = "http-request"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryGeneric       ErrorCategory = "generic"
	CategoryNotFound      ErrorCategory = "not-found"
	CategoryConflict      ErrorCategory = "conflict"
	CategoryProcessing    ErrorCategory = "processing"
	CategoryState         ErrorCategory = "state"
	CategoryLimit         ErrorCategory = "limit"
	CategoryPublish       ErrorCategory = "publish"
	CategoryNotification  ErrorCategory = "notification"

	// Pipeline categories
	CategoryRegistration ErrorCategory = "registration"     // Directory registration runs
	CategoryStatistics   ErrorCategory = "statistics"       // Sky brightness computation
	CategoryWorker       ErrorCategory = "worker-pool"      // Worker pool operations
	CategoryBias         ErrorCategory = "bias-validation"  // Camera pedestal checks
	CategoryCFA          ErrorCategory = "cfa-subsampling"  // Bayer offsets and regions

	// General categories useful across packages
	CategoryTimeout      ErrorCategory = "timeout"      // Operation timeouts
	CategoryCancellation ErrorCategory = "cancellation" // Cancelled operations
	CategoryIntegration  ErrorCategory = "integration"  // Third-party integrations
)

// Priority constants for error prioritization
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// ComponentUnknown is used when the component cannot be determined.
const ComponentUnknown = "unknown"

// modulePath prefixes every package of this module
const modulePath = "github.com/skyglow/skyglow-go/"

// EnhancedError wraps an error with additional context and metadata
type EnhancedError struct {
	Err       error
	Category  ErrorCategory
	Priority  string // empty unless set explicitly
	Context   map[string]any
	Timestamp time.Time

	component string
	mu        sync.RWMutex
	reported  bool
}

func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is matches another EnhancedError by category, anything else through the
// wrapped chain
func (ee *EnhancedError) Is(target error) bool {
	if other, ok := target.(*EnhancedError); ok {
		return ee.Category == other.Category
	}
	return Is(ee.Err, target)
}

// GetComponent returns the component set on the builder or detected from
// the caller, ComponentUnknown when neither worked
func (ee *EnhancedError) GetComponent() string {
	if ee.component == "" {
		return ComponentUnknown
	}
	return ee.component
}

// GetCategory returns the error category
func (ee *EnhancedError) GetCategory() string {
	return string(ee.Category)
}

// GetPriority returns the explicit priority if set, empty string otherwise
func (ee *EnhancedError) GetPriority() string {
	return ee.Priority
}

// GetContext returns a copy of the error context
func (ee *EnhancedError) GetContext() map[string]any {
	ee.mu.RLock()
	defer ee.mu.RUnlock()

	if ee.Context == nil {
		return nil
	}

	contextCopy := make(map[string]any, len(ee.Context))
	maps.Copy(contextCopy, ee.Context)
	return contextCopy
}

// GetTimestamp returns when the error occurred
func (ee *EnhancedError) GetTimestamp() time.Time {
	return ee.Timestamp
}

// MarkReported marks this error as delivered to the reporters
func (ee *EnhancedError) MarkReported() {
	ee.mu.Lock()
	defer ee.mu.Unlock()
	ee.reported = true
}

// IsReported returns whether this error has been reported
func (ee *EnhancedError) IsReported() bool {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	return ee.reported
}

// ErrorBuilder provides a fluent interface for creating enhanced errors
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	priority  string
	context   map[string]any
}

// New creates a new error with enhanced context
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf creates a new formatted error with enhanced context
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component sets the component name (auto-detected if not set)
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category sets the error category for better grouping
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Priority sets the explicit priority override for the error.
// Unknown values fall back to medium.
func (eb *ErrorBuilder) Priority(priority string) *ErrorBuilder {
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		eb.priority = priority
	default:
		if priority != "" {
			eb.priority = PriorityMedium
		}
	}
	return eb
}

// Context adds context data to the error
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// FileContext adds the file name, extension and a size bucket
func (eb *ErrorBuilder) FileContext(filePath string, fileSize int64) *ErrorBuilder {
	if filePath != "" {
		eb.Context("file_name", baseName(filePath))
		eb.Context("file_extension", getFileExtension(filePath))
	}
	if fileSize > 0 {
		eb.Context("file_size_category", categorizeFileSize(fileSize))
	}
	return eb
}

// NetworkContext adds network-specific context (URLs are reduced to their scheme)
func (eb *ErrorBuilder) NetworkContext(url string, timeout time.Duration) *ErrorBuilder {
	if url != "" {
		eb.Context("url_category", categorizeURL(url))
	}
	if timeout > 0 {
		eb.Context("timeout_seconds", timeout.Seconds())
	}
	return eb
}

// Timing adds performance timing context
func (eb *ErrorBuilder) Timing(operation string, duration time.Duration) *ErrorBuilder {
	eb.Context("operation", operation)
	eb.Context("duration_ms", duration.Milliseconds())
	return eb
}

// Build creates the EnhancedError and hands it to the registered reporters.
// Component and category detection only run when a reporter is installed.
func (eb *ErrorBuilder) Build() *EnhancedError {
	reporting := hasActiveReporting.Load()

	component, category := eb.component, eb.category
	if component == "" && reporting {
		component = callerComponent()
	}
	if category == "" {
		category = CategoryGeneric
		if reporting {
			category = detectCategory(eb.err, component)
		}
	}

	ee := &EnhancedError{
		Err:       eb.err,
		Category:  category,
		Priority:  eb.priority,
		Context:   eb.context,
		Timestamp: time.Now(),
		component: component,
	}
	if reporting {
		report(ee)
	}
	return ee
}

// components maps package directories below the module root to the
// component names used in logs and telemetry
var components = map[string]string{
	"internal/datastore":    "datastore",
	"internal/registration": "registration",
	"internal/stats":        "stats",
	"internal/metadata":     "metadata",
	"internal/cfa":          "cfa",
	"internal/export":       "export",
	"internal/publish":      "publish",
	"internal/pipeline":     "pipeline",
	"internal/notify":       "notify",
	"internal/conf":         "configuration",
	"internal/api":          "api",
}

// callerComponent walks the stack above Build and names the first frame
// that belongs to a package of this module other than errors
func callerComponent() string {
	pcs := make([]uintptr, 32)
	frames := runtime.CallersFrames(pcs[:runtime.Callers(3, pcs)])
	for {
		frame, more := frames.Next()
		if pkg, ok := strings.CutPrefix(frame.Function, modulePath); ok && !strings.HasPrefix(pkg, "internal/errors.") {
			return packageComponent(pkg)
		}
		if !more {
			return ComponentUnknown
		}
	}
}

// packageComponent resolves "internal/datastore/repository.(*x).Save" to
// the closest registered package, or the last path element
func packageComponent(fn string) string {
	pkg := fn
	if slash := strings.LastIndex(pkg, "/"); slash >= 0 {
		if dot := strings.Index(pkg[slash:], "."); dot >= 0 {
			pkg = pkg[:slash+dot]
		}
	} else if dot := strings.Index(pkg, "."); dot >= 0 {
		pkg = pkg[:dot]
	}
	for dir := pkg; dir != "" && dir != "."; dir = path.Dir(dir) {
		if name, ok := components[dir]; ok {
			return name
		}
	}
	return path.Base(pkg)
}

// detectCategory derives a category from the error chain, message and component
func detectCategory(err error, component string) ErrorCategory {
	var enhErr *EnhancedError
	if stderrors.As(err, &enhErr) && enhErr.Category != "" {
		return enhErr.Category
	}

	if err == nil {
		return CategoryGeneric
	}
	errorMsg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errorMsg, "timestamp"), strings.Contains(errorMsg, "header"):
		return CategoryFileParsing
	case strings.Contains(errorMsg, "file"), strings.Contains(errorMsg, "read"), strings.Contains(errorMsg, "open"):
		return CategoryFileIO
	case strings.Contains(errorMsg, "connection"), strings.Contains(errorMsg, "timeout"):
		return CategoryNetwork
	case strings.Contains(errorMsg, "validation"), strings.Contains(errorMsg, "invalid"):
		return CategoryValidation
	}

	switch component {
	case "datastore":
		return CategoryDatabase
	case "publish":
		return CategoryPublish
	case "metadata":
		return CategoryImageDecode
	case "registration":
		return CategoryRegistration
	case "stats":
		return CategoryStatistics
	}

	return CategoryGeneric
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}

// getFileExtension extracts file extension for categorization
func getFileExtension(path string) string {
	if lastDot := strings.LastIndex(path, "."); lastDot > 0 && lastDot < len(path)-1 {
		return strings.ToLower(path[lastDot+1:])
	}
	return "none"
}

// categorizeFileSize groups file sizes into categories
func categorizeFileSize(size int64) string {
	switch {
	case size < 1024*1024:
		return "small"
	case size < 32*1024*1024: // typical RAW frame
		return "medium"
	case size < 256*1024*1024:
		return "large"
	default:
		return "very-large"
	}
}

// categorizeURL keeps the protocol only
func categorizeURL(url string) string {
	url = strings.ToLower(url)
	switch {
	case strings.HasPrefix(url, "http://"):
		return "http-endpoint"
	case strings.HasPrefix(url, "https://"):
		return "https-endpoint"
	case strings.HasPrefix(url, "tcp://"), strings.HasPrefix(url, "ssl://"), strings.HasPrefix(url, "mqtt://"):
		return "mqtt-broker"
	default:
		return "other-protocol"
	}
}

// ValidationError creates a validation error
func ValidationError(message string) *EnhancedError {
	return New(NewStd(message)).
		Category(CategoryValidation).
		Build()
}

// Standard library passthrough functions

// NewStd creates a new standard error (passthrough to standard library)
func NewStd(text string) error {
	return stderrors.New(text)
}

// Is reports whether any error in err's tree matches target
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Join returns an error that wraps the given errors
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

// IsCategory checks if an error is an EnhancedError with the specified category.
func IsCategory(err error, category ErrorCategory) bool {
	var enhancedErr *EnhancedError
	return As(err, &enhancedErr) && enhancedErr.Category == category
}

// IsNotFound checks if an error is an EnhancedError with CategoryNotFound.
func IsNotFound(err error) bool {
	return IsCategory(err, CategoryNotFound)
}

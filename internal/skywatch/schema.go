package skywatch

// FieldCategory is the semantic grouping of an event column.
type FieldCategory string

const (
	CategoryBasic       FieldCategory = "basic"
	CategoryError       FieldCategory = "error"
	CategoryDevice      FieldCategory = "device"
	CategoryNetwork     FieldCategory = "network"
	CategoryFramework   FieldCategory = "framework"
	CategoryHTTP        FieldCategory = "http"
	CategoryResource    FieldCategory = "resource"
	CategorySession     FieldCategory = "session"
	CategoryUser        FieldCategory = "user"
	CategoryContext     FieldCategory = "context"
	CategoryPerformance FieldCategory = "performance"
	CategoryMetadata    FieldCategory = "metadata"
	CategoryRelease     FieldCategory = "release"
)

// FieldConfig describes one queryable column of the event table.
type FieldConfig struct {
	Type         string
	Category     FieldCategory
	Groupable    bool
	Aggregatable bool
}

// eventFields is the compiled-in schema registry. Every field reference in a
// query must resolve here (or be a recognized function expression) before any
// SQL is built. The registry never changes at runtime.
var eventFields = map[string]FieldConfig{
	// basic
	"app_id":      {Type: "String", Category: CategoryBasic, Groupable: true, Aggregatable: true},
	"event_type":  {Type: "String", Category: CategoryBasic, Groupable: true, Aggregatable: true},
	"event_name":  {Type: "String", Category: CategoryBasic, Groupable: true, Aggregatable: true},
	"event_id":    {Type: "String", Category: CategoryBasic, Groupable: false, Aggregatable: true},
	"timestamp":   {Type: "DateTime", Category: CategoryBasic, Groupable: true, Aggregatable: true},
	"dedup_count": {Type: "UInt64", Category: CategoryBasic, Groupable: false, Aggregatable: true},

	// error
	"error_message":     {Type: "String", Category: CategoryError, Groupable: false, Aggregatable: true},
	"error_stack":       {Type: "String", Category: CategoryError, Groupable: false, Aggregatable: true},
	"error_fingerprint": {Type: "String", Category: CategoryError, Groupable: true, Aggregatable: true},
	"error_type":        {Type: "String", Category: CategoryError, Groupable: true, Aggregatable: true},
	"error_filename":    {Type: "String", Category: CategoryError, Groupable: true, Aggregatable: true},
	"error_line":        {Type: "UInt32", Category: CategoryError, Groupable: false, Aggregatable: true},
	"error_column":      {Type: "UInt32", Category: CategoryError, Groupable: false, Aggregatable: true},

	// device
	"browser":           {Type: "String", Category: CategoryDevice, Groupable: true, Aggregatable: true},
	"browser_version":   {Type: "String", Category: CategoryDevice, Groupable: true, Aggregatable: true},
	"os":                {Type: "String", Category: CategoryDevice, Groupable: true, Aggregatable: true},
	"os_version":        {Type: "String", Category: CategoryDevice, Groupable: true, Aggregatable: true},
	"device_type":       {Type: "String", Category: CategoryDevice, Groupable: true, Aggregatable: true},
	"device_vendor":     {Type: "String", Category: CategoryDevice, Groupable: true, Aggregatable: true},
	"screen_resolution": {Type: "String", Category: CategoryDevice, Groupable: true, Aggregatable: true},
	"language":          {Type: "String", Category: CategoryDevice, Groupable: true, Aggregatable: true},
	"user_agent":        {Type: "String", Category: CategoryDevice, Groupable: false, Aggregatable: false},

	// network
	"network_type":   {Type: "String", Category: CategoryNetwork, Groupable: true, Aggregatable: true},
	"effective_type": {Type: "String", Category: CategoryNetwork, Groupable: true, Aggregatable: true},
	"rtt":            {Type: "UInt32", Category: CategoryNetwork, Groupable: false, Aggregatable: true},
	"downlink":       {Type: "Float64", Category: CategoryNetwork, Groupable: false, Aggregatable: true},

	// framework
	"framework":         {Type: "String", Category: CategoryFramework, Groupable: true, Aggregatable: true},
	"framework_version": {Type: "String", Category: CategoryFramework, Groupable: true, Aggregatable: true},
	"component_name":    {Type: "String", Category: CategoryFramework, Groupable: true, Aggregatable: true},
	"component_stack":   {Type: "String", Category: CategoryFramework, Groupable: false, Aggregatable: false},

	// http
	"http_url":           {Type: "String", Category: CategoryHTTP, Groupable: true, Aggregatable: true},
	"http_method":        {Type: "String", Category: CategoryHTTP, Groupable: true, Aggregatable: true},
	"http_status":        {Type: "UInt16", Category: CategoryHTTP, Groupable: true, Aggregatable: true},
	"http_duration":      {Type: "Float64", Category: CategoryHTTP, Groupable: false, Aggregatable: true},
	"http_response_size": {Type: "UInt64", Category: CategoryHTTP, Groupable: false, Aggregatable: true},
	"http_request_data":  {Type: "String", Category: CategoryHTTP, Groupable: false, Aggregatable: false},

	// resource
	"resource_url":      {Type: "String", Category: CategoryResource, Groupable: true, Aggregatable: true},
	"resource_type":     {Type: "String", Category: CategoryResource, Groupable: true, Aggregatable: true},
	"resource_duration": {Type: "Float64", Category: CategoryResource, Groupable: false, Aggregatable: true},
	"resource_size":     {Type: "UInt64", Category: CategoryResource, Groupable: false, Aggregatable: true},

	// session
	"session_id": {Type: "String", Category: CategorySession, Groupable: true, Aggregatable: true},
	"page_url":   {Type: "String", Category: CategorySession, Groupable: true, Aggregatable: true},
	"page_title": {Type: "String", Category: CategorySession, Groupable: false, Aggregatable: false},
	"referrer":   {Type: "String", Category: CategorySession, Groupable: true, Aggregatable: true},

	// user
	"user_id":     {Type: "String", Category: CategoryUser, Groupable: true, Aggregatable: true},
	"ip_address":  {Type: "String", Category: CategoryUser, Groupable: true, Aggregatable: true},
	"geo_country": {Type: "String", Category: CategoryUser, Groupable: true, Aggregatable: true},
	"geo_city":    {Type: "String", Category: CategoryUser, Groupable: true, Aggregatable: true},

	// context
	"custom_tags": {Type: "String", Category: CategoryContext, Groupable: false, Aggregatable: false},
	"breadcrumbs": {Type: "String", Category: CategoryContext, Groupable: false, Aggregatable: false},
	"extra_data":  {Type: "String", Category: CategoryContext, Groupable: false, Aggregatable: false},

	// performance
	"fcp":         {Type: "Float64", Category: CategoryPerformance, Groupable: false, Aggregatable: true},
	"lcp":         {Type: "Float64", Category: CategoryPerformance, Groupable: false, Aggregatable: true},
	"fid":         {Type: "Float64", Category: CategoryPerformance, Groupable: false, Aggregatable: true},
	"cls":         {Type: "Float64", Category: CategoryPerformance, Groupable: false, Aggregatable: true},
	"inp":         {Type: "Float64", Category: CategoryPerformance, Groupable: false, Aggregatable: true},
	"ttfb":        {Type: "Float64", Category: CategoryPerformance, Groupable: false, Aggregatable: true},
	"dom_ready":   {Type: "Float64", Category: CategoryPerformance, Groupable: false, Aggregatable: true},
	"load_time":   {Type: "Float64", Category: CategoryPerformance, Groupable: false, Aggregatable: true},
	"first_paint": {Type: "Float64", Category: CategoryPerformance, Groupable: false, Aggregatable: true},
	"memory_used": {Type: "Float64", Category: CategoryPerformance, Groupable: false, Aggregatable: true},

	// metadata
	"sdk_name":     {Type: "String", Category: CategoryMetadata, Groupable: true, Aggregatable: true},
	"sdk_version":  {Type: "String", Category: CategoryMetadata, Groupable: true, Aggregatable: true},
	"page_load_id": {Type: "String", Category: CategoryMetadata, Groupable: false, Aggregatable: true},

	// release
	"release":     {Type: "String", Category: CategoryRelease, Groupable: true, Aggregatable: true},
	"environment": {Type: "String", Category: CategoryRelease, Groupable: true, Aggregatable: true},
	"app_version": {Type: "String", Category: CategoryRelease, Groupable: true, Aggregatable: true},
}

// ValidateField reports whether name is a queryable event column.
func ValidateField(name string) bool {
	_, ok := eventFields[name]
	return ok
}

// FieldByName returns the configuration of a queryable column.
func FieldByName(name string) (FieldConfig, bool) {
	cfg, ok := eventFields[name]
	return cfg, ok
}

// FieldCount returns the number of registered columns.
func FieldCount() int {
	return len(eventFields)
}

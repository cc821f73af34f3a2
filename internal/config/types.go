package config

import (
	"context"

	"github.com/user/relaygate/pkg/secrets"
)

var secretManager = &secrets.EnvManager{Prefix: "RELAYGATE_"}

// Dialect identifies a supported SQL dialect.
type Dialect string

const (
	MySQL  Dialect = "mysql"
	MSSQL  Dialect = "mssql"
	SQLite Dialect = "sqlite"
)

// DbDrive names the logical datasource an endpoint targets.
type DbDrive struct {
	Drive Dialect `json:"drive" yaml:"drive"`
	Host  string  `json:"host" yaml:"host"`
}

// Key returns the datasource identity used to cache pools and connections.
func (d DbDrive) Key() string {
	return string(d.Drive) + "|" + d.Host
}

// ParamSource names where a paramsMapping entry is read from.
type ParamSource string

const (
	SourcePath  ParamSource = "path"
	SourceQuery ParamSource = "query"
	SourceBody  ParamSource = "body"
	SourceAll   ParamSource = "all"
)

// DataType names the coercion target type for a resolved parameter.
type DataType string

const (
	TypeString  DataType = "string"
	TypeInt     DataType = "int"
	TypeLong    DataType = "long"
	TypeDouble  DataType = "double"
	TypeBoolean DataType = "boolean"
)

// Validator is one entry in a paramsMapping validator chain.
type Validator struct {
	Type    string   `json:"type" yaml:"type"`
	Message string   `json:"message,omitempty" yaml:"message,omitempty"`
	Min     *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max     *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Length  *int     `json:"length,omitempty" yaml:"length,omitempty"`
	Pattern string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Enum    []string `json:"enum,omitempty" yaml:"enum,omitempty"`
}

// ParamMapping declares one incoming parameter and how to validate/coerce it.
type ParamMapping struct {
	Field      string      `json:"field" yaml:"field"`
	Alias      string      `json:"alias,omitempty" yaml:"alias,omitempty"`
	Source     ParamSource `json:"source,omitempty" yaml:"source,omitempty"`
	DataType   DataType    `json:"dataType,omitempty" yaml:"dataType,omitempty"`
	Validators []Validator `json:"validators,omitempty" yaml:"validators,omitempty"`
}

// Key returns the name under which the resolved value is emitted.
func (p ParamMapping) Key() string {
	if p.Alias != "" {
		return p.Alias
	}
	return p.Field
}

// ConditionLogic joins the fragments a single paramKey expands over.
type ConditionLogic string

const (
	LogicAnd ConditionLogic = "AND"
	LogicOr  ConditionLogic = "OR"
)

// ConditionEntry describes how one incoming parameter expands into WHERE
// fragments over one or more columns.
type ConditionEntry struct {
	Fields   []string       `json:"fields" yaml:"fields"`
	Operator string         `json:"operator" yaml:"operator"`
	Logic    ConditionLogic `json:"logic,omitempty" yaml:"logic,omitempty"`
}

// SortOrder names an ORDER BY direction.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// SortField is one ORDER BY entry.
type SortField struct {
	Field string    `json:"field" yaml:"field"`
	Order SortOrder `json:"order,omitempty" yaml:"order,omitempty"`
}

// EndpointDef is a declarative description of one database-backed operation.
type EndpointDef struct {
	TableName              string                    `json:"tableName" yaml:"tableName"`
	DbDrive                DbDrive                   `json:"dbDrive" yaml:"dbDrive"`
	Field                  []string                  `json:"field,omitempty" yaml:"field,omitempty"`
	ParamsMapping          []ParamMapping            `json:"paramsMapping,omitempty" yaml:"paramsMapping,omitempty"`
	ConditionSchema        map[string]ConditionEntry `json:"conditionSchema,omitempty" yaml:"conditionSchema,omitempty"`
	Sort                   []SortField               `json:"sort,omitempty" yaml:"sort,omitempty"`
	MutableFields          []string                  `json:"mutableFields,omitempty" yaml:"mutableFields,omitempty"`
	Pk                     string                    `json:"pk,omitempty" yaml:"pk,omitempty"`
	Action                 string                    `json:"action,omitempty" yaml:"action,omitempty"`
	PresetParams           map[string]any            `json:"presetParams,omitempty" yaml:"presetParams,omitempty"`
	ShallowToDeepThreshold int                       `json:"shallowToDeepThreshold,omitempty" yaml:"shallowToDeepThreshold,omitempty"`
	RequireAuth            bool                      `json:"requireAuth,omitempty" yaml:"requireAuth,omitempty"`
	AuthConfig             *AuthConfig               `json:"authConfig,omitempty" yaml:"authConfig,omitempty"`
}

// EffectivePk returns the configured primary key, defaulting to "id".
func (e *EndpointDef) EffectivePk() string {
	if e.Pk == "" {
		return "id"
	}
	return e.Pk
}

// EffectiveFields returns the projection list, defaulting to "*".
func (e *EndpointDef) EffectiveFields() []string {
	if len(e.Field) == 0 {
		return []string{"*"}
	}
	return e.Field
}

// JobStepType names a job-flow step kind.
type JobStepType string

const (
	StepAPI    JobStepType = "api"
	StepScript JobStepType = "script"
)

// JobStep is one step of a JobDef.
type JobStep struct {
	Type          JobStepType `json:"type" yaml:"type"`
	ApiKey        string      `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	Operation     string      `json:"operation,omitempty" yaml:"operation,omitempty"`
	ScriptType    string      `json:"scriptType,omitempty" yaml:"scriptType,omitempty"`
	ScriptContent string      `json:"scriptContent,omitempty" yaml:"scriptContent,omitempty"`
}

// JobDef is an ordered composite of API and script steps executed under one
// transactional envelope.
type JobDef struct {
	Jobs         []JobStep   `json:"jobs" yaml:"jobs"`
	Transaction  *bool       `json:"transaction,omitempty" yaml:"transaction,omitempty"`
	RequireAuth  bool        `json:"requireAuth,omitempty" yaml:"requireAuth,omitempty"`
	AuthConfig   *AuthConfig `json:"authConfig,omitempty" yaml:"authConfig,omitempty"`
}

// TransactionEnabled returns whether the job runs its API steps under a
// transactional envelope, defaulting to true.
func (j *JobDef) TransactionEnabled() bool {
	if j.Transaction == nil {
		return true
	}
	return *j.Transaction
}

// SignatureAlgorithm names a supported signature digest.
type SignatureAlgorithm string

const (
	AlgMD5        SignatureAlgorithm = "md5"
	AlgSHA1       SignatureAlgorithm = "sha1"
	AlgSHA256     SignatureAlgorithm = "sha256"
	AlgHMACMD5    SignatureAlgorithm = "hmacmd5"
	AlgHMACSHA1   SignatureAlgorithm = "hmacsha1"
	AlgHMACSHA256 SignatureAlgorithm = "hmacsha256"
)

// AuthConfig controls signature verification, rate limiting and
// slow-query/audit logging for one or more endpoints.
type AuthConfig struct {
	SignatureExpire    *int64              `json:"signatureExpire,omitempty" yaml:"signatureExpire,omitempty"`
	RateLimitWindow    *int64              `json:"rateLimitWindow,omitempty" yaml:"rateLimitWindow,omitempty"`
	RateLimitMax       *int                `json:"rateLimitMax,omitempty" yaml:"rateLimitMax,omitempty"`
	IntervalMin        *int64              `json:"intervalMin,omitempty" yaml:"intervalMin,omitempty"`
	SignatureAlgorithm *SignatureAlgorithm `json:"signatureAlgorithm,omitempty" yaml:"signatureAlgorithm,omitempty"`
	AuditFieldPrefix   *string             `json:"auditFieldPrefix,omitempty" yaml:"auditFieldPrefix,omitempty"`
	AuditSignature     *string             `json:"auditSignature,omitempty" yaml:"auditSignature,omitempty"`
	AuditTimestamp     *string             `json:"auditTimestamp,omitempty" yaml:"auditTimestamp,omitempty"`
	Secret             *string             `json:"secret,omitempty" yaml:"secret,omitempty"`
	SlowLog            *bool               `json:"slowLog,omitempty" yaml:"slowLog,omitempty"`
	SlowLogThreshold   *int64              `json:"slowLogThreshold,omitempty" yaml:"slowLogThreshold,omitempty"`
	LogLevel           *string             `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
}

// Merge produces a new AuthConfig whose fields are this override's non-nil
// values, falling back to global's. Pure function — no reflection, no
// in-place mutation (see DESIGN.md "bean-copy merge").
func Merge(global, override *AuthConfig) *AuthConfig {
	if global == nil {
		global = &AuthConfig{}
	}
	if override == nil {
		return global
	}
	merged := *global
	if override.SignatureExpire != nil {
		merged.SignatureExpire = override.SignatureExpire
	}
	if override.RateLimitWindow != nil {
		merged.RateLimitWindow = override.RateLimitWindow
	}
	if override.RateLimitMax != nil {
		merged.RateLimitMax = override.RateLimitMax
	}
	if override.IntervalMin != nil {
		merged.IntervalMin = override.IntervalMin
	}
	if override.SignatureAlgorithm != nil {
		merged.SignatureAlgorithm = override.SignatureAlgorithm
	}
	if override.AuditFieldPrefix != nil {
		merged.AuditFieldPrefix = override.AuditFieldPrefix
	}
	if override.AuditSignature != nil {
		merged.AuditSignature = override.AuditSignature
	}
	if override.AuditTimestamp != nil {
		merged.AuditTimestamp = override.AuditTimestamp
	}
	if override.Secret != nil {
		merged.Secret = override.Secret
	}
	if override.SlowLog != nil {
		merged.SlowLog = override.SlowLog
	}
	if override.SlowLogThreshold != nil {
		merged.SlowLogThreshold = override.SlowLogThreshold
	}
	if override.LogLevel != nil {
		merged.LogLevel = override.LogLevel
	}
	return &merged
}

func int64Default(p *int64, d int64) int64 {
	if p == nil {
		return d
	}
	return *p
}

func intDefault(p *int, d int) int {
	if p == nil {
		return d
	}
	return *p
}

func strDefault(p *string, d string) string {
	if p == nil || *p == "" {
		return d
	}
	return *p
}

// SignatureExpireOrDefault returns the configured expiry, defaulting to 300s.
func (a *AuthConfig) SignatureExpireOrDefault() int64 { return int64Default(a.SignatureExpire, 300) }

// RateLimitWindowOrDefault returns the configured window, defaulting to 60s.
func (a *AuthConfig) RateLimitWindowOrDefault() int64 { return int64Default(a.RateLimitWindow, 60) }

// RateLimitMaxOrDefault returns the configured max, defaulting to 100.
func (a *AuthConfig) RateLimitMaxOrDefault() int { return intDefault(a.RateLimitMax, 100) }

// IntervalMinOrDefault returns the configured min interval in ms, defaulting to 0.
func (a *AuthConfig) IntervalMinOrDefault() int64 { return int64Default(a.IntervalMin, 0) }

// SignatureAlgorithmOrDefault returns the configured algorithm, defaulting to sha256.
func (a *AuthConfig) SignatureAlgorithmOrDefault() SignatureAlgorithm {
	if a.SignatureAlgorithm == nil || *a.SignatureAlgorithm == "" {
		return AlgSHA256
	}
	return *a.SignatureAlgorithm
}

// AuditFieldPrefixOrDefault returns the configured prefix, defaulting to "audit_".
func (a *AuthConfig) AuditFieldPrefixOrDefault() string {
	return strDefault(a.AuditFieldPrefix, "audit_")
}

// AuditSignatureOrDefault returns the configured signature field name, defaulting to "signature".
func (a *AuthConfig) AuditSignatureOrDefault() string {
	return strDefault(a.AuditSignature, "signature")
}

// AuditTimestampOrDefault returns the configured timestamp field name, defaulting to "timestamp".
func (a *AuthConfig) AuditTimestampOrDefault() string {
	return strDefault(a.AuditTimestamp, "timestamp")
}

// SecretOrEmpty returns the configured secret, or "" if unset. A value of
// the form "secret:NAME" is resolved against the environment (prefixed
// RELAYGATE_) rather than taken literally, so signing secrets don't have to
// sit in plaintext inside sql-config/auth-config files.
func (a *AuthConfig) SecretOrEmpty() string {
	if a.Secret == nil {
		return ""
	}
	return secrets.ResolveSecret(context.Background(), secretManager, *a.Secret)
}

// SlowLogOrDefault returns whether slow-query logging is enabled, defaulting to true.
func (a *AuthConfig) SlowLogOrDefault() bool {
	if a.SlowLog == nil {
		return true
	}
	return *a.SlowLog
}

// SlowLogThresholdOrDefault returns the slow-query threshold in ms. Per the
// source's likely-bug note (spec.md DESIGN NOTES), this never unboxes a
// non-nullable int: threshold = authConfig?.slowLogThreshold ?? 1000.
func (a *AuthConfig) SlowLogThresholdOrDefault() int64 {
	return int64Default(a.SlowLogThreshold, 1000)
}

// PoolPolicy bounds one dialect's connection pool.
type PoolPolicy struct {
	Max               int `json:"max,omitempty" yaml:"max,omitempty"`
	MinIdle           int `json:"minIdle,omitempty" yaml:"minIdle,omitempty"`
	ConnectionTimeoutMs int `json:"connectionTimeoutMs,omitempty" yaml:"connectionTimeoutMs,omitempty"`
	IdleTimeoutMs     int `json:"idleTimeoutMs,omitempty" yaml:"idleTimeoutMs,omitempty"`
}

// DbConfig maps each dialect to its set of named host specs and pool policy.
type DbConfig struct {
	MySQL  map[string]HostSpec `json:"mysql,omitempty" yaml:"mysql,omitempty"`
	MSSQL  map[string]HostSpec `json:"mssql,omitempty" yaml:"mssql,omitempty"`
	SQLite map[string]HostSpec `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
}

// HostSpec is one named datasource entry plus its pool policy.
type HostSpec struct {
	DSN  string     `json:"dsn" yaml:"dsn"`
	Pool PoolPolicy `json:"pool,omitempty" yaml:"pool,omitempty"`
}

// StandardParams is the wire shape fed by the HTTP/RPC front end.
type StandardParams struct {
	Path  map[string]any `json:"path,omitempty"`
	Query map[string]any `json:"query,omitempty"`
	Body  map[string]any `json:"body,omitempty"`
}

// Param looks up name probing path, then body, then query — the "all" source order.
func (p StandardParams) Param(name string) (any, bool) {
	if p.Path != nil {
		if v, ok := p.Path[name]; ok {
			return v, true
		}
	}
	if p.Body != nil {
		if v, ok := p.Body[name]; ok {
			return v, true
		}
	}
	if p.Query != nil {
		if v, ok := p.Query[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// FromSource looks up name under one specific declared source.
func (p StandardParams) FromSource(source ParamSource, name string) (any, bool) {
	switch source {
	case SourcePath:
		v, ok := p.Path[name]
		return v, ok
	case SourceQuery:
		v, ok := p.Query[name]
		return v, ok
	case SourceBody:
		v, ok := p.Body[name]
		return v, ok
	default:
		return p.Param(name)
	}
}

// Merged flattens path/body/query into one map (path wins, then body, then
// query) — used as the signature-verification input, which operates over
// the entire merged-param map.
func (p StandardParams) Merged() map[string]any {
	out := make(map[string]any, len(p.Query)+len(p.Body)+len(p.Path))
	for k, v := range p.Query {
		out[k] = v
	}
	for k, v := range p.Body {
		out[k] = v
	}
	for k, v := range p.Path {
		out[k] = v
	}
	return out
}

// Package registry provides a central schema registry for table metadata.
package registry

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/marshallshelly/setlistdb/pkg/schema"
)

// Registry is a thread-safe registry for table metadata, addressable by Go
// type, model name and table name.
type Registry struct {
	mu     sync.RWMutex
	parser *schema.Parser
	tables map[reflect.Type]*schema.TableMetadata
	models map[string]*schema.TableMetadata
	names  map[string]*schema.TableMetadata
}

// NewRegistry creates a new Registry instance.
func NewRegistry() *Registry {
	return &Registry{
		parser: schema.NewParser(),
		tables: make(map[reflect.Type]*schema.TableMetadata),
		models: make(map[string]*schema.TableMetadata),
		names:  make(map[string]*schema.TableMetadata),
	}
}

// Register registers a model type and extracts its metadata. Registering the
// same type twice is a no-op.
func (r *Registry) Register(model any) error {
	modelType := reflect.TypeOf(model)
	if modelType == nil {
		return fmt.Errorf("model must be a struct, got nil")
	}
	for modelType.Kind() == reflect.Pointer {
		modelType = modelType.Elem()
	}
	if modelType.Kind() != reflect.Struct {
		return fmt.Errorf("model must be a struct, got %s", modelType.Kind())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tables[modelType]; ok {
		return nil
	}

	table, err := r.parser.Parse(modelType)
	if err != nil {
		return fmt.Errorf("failed to parse model %s: %w", modelType.Name(), err)
	}
	if err := schema.ValidateTable(table); err != nil {
		return fmt.Errorf("invalid model %s: %w", modelType.Name(), err)
	}
	if existing, ok := r.models[table.ModelName]; ok && existing.GoType != modelType {
		return fmt.Errorf("model name %s already registered by %s", table.ModelName, existing.GoType)
	}

	r.tables[modelType] = table
	r.models[table.ModelName] = table
	r.names[table.Name] = table
	return nil
}

// Get retrieves TableMetadata by Go type.
func (r *Registry) Get(modelType reflect.Type) (*schema.TableMetadata, error) {
	for modelType.Kind() == reflect.Pointer {
		modelType = modelType.Elem()
	}

	r.mu.RLock()
	table, ok := r.tables[modelType]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("model type %s not registered", modelType.Name())
	}
	return table, nil
}

// GetByModel retrieves TableMetadata by model name ("Artist").
func (r *Registry) GetByModel(modelName string) (*schema.TableMetadata, error) {
	r.mu.RLock()
	table, ok := r.models[modelName]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("model %s not registered", modelName)
	}
	return table, nil
}

// GetByName retrieves TableMetadata by table name.
func (r *Registry) GetByName(tableName string) (*schema.TableMetadata, error) {
	r.mu.RLock()
	table, ok := r.names[tableName]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("table %s not registered", tableName)
	}
	return table, nil
}

// GetOrRegister retrieves TableMetadata or registers it if not found.
func (r *Registry) GetOrRegister(model any) (*schema.TableMetadata, error) {
	modelType := reflect.TypeOf(model)
	for modelType.Kind() == reflect.Pointer {
		modelType = modelType.Elem()
	}

	r.mu.RLock()
	table, ok := r.tables[modelType]
	r.mu.RUnlock()
	if ok {
		return table, nil
	}

	if err := r.Register(model); err != nil {
		return nil, err
	}
	return r.Get(modelType)
}

// Target returns the metadata of a relation's target model.
func (r *Registry) Target(rel *schema.RelationshipMetadata) (*schema.TableMetadata, error) {
	return r.Get(rel.TargetType)
}

// All returns all registered table metadata ordered by model name.
func (r *Registry) All() []*schema.TableMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tables := make([]*schema.TableMetadata, 0, len(r.tables))
	for _, table := range r.tables {
		tables = append(tables, table)
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].ModelName < tables[j].ModelName })
	return tables
}

// ModelNames returns all registered model names, sorted.
func (r *Registry) ModelNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has checks if a model type is registered.
func (r *Registry) Has(modelType reflect.Type) bool {
	for modelType.Kind() == reflect.Pointer {
		modelType = modelType.Elem()
	}

	r.mu.RLock()
	_, ok := r.tables[modelType]
	r.mu.RUnlock()
	return ok
}

// HasTable checks if a table name is registered.
func (r *Registry) HasTable(tableName string) bool {
	r.mu.RLock()
	_, ok := r.names[tableName]
	r.mu.RUnlock()
	return ok
}

// Validate checks cross-model consistency: every relation targets a
// registered model, the join columns exist on both sides and every foreign key
// references a registered table.
func (r *Registry) Validate() error {
	var errs []error
	for _, table := range r.All() {
		for i := range table.Relationships {
			rel := &table.Relationships[i]
			target, err := r.Target(rel)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s.%s: %w", table.ModelName, rel.Name, err))
				continue
			}
			if target.GetColumn(rel.RemoteColumn()) == nil {
				errs = append(errs, fmt.Errorf("%s.%s: column %s not found on %s",
					table.ModelName, rel.Name, rel.RemoteColumn(), target.ModelName))
			}
		}
		for _, fk := range table.ForeignKeys {
			if !r.HasTable(fk.ReferencedTable) {
				errs = append(errs, fmt.Errorf("%s: foreign key %s references unregistered table %s",
					table.ModelName, fk.Name, fk.ReferencedTable))
			}
		}
	}
	return errors.Join(errs...)
}

// Clear removes all registered models.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tables = make(map[reflect.Type]*schema.TableMetadata)
	r.models = make(map[string]*schema.TableMetadata)
	r.names = make(map[string]*schema.TableMetadata)
}

// globalRegistry is the default global registry instance.
var globalRegistry = NewRegistry()

// Global returns the process-wide registry.
func Global() *Registry {
	return globalRegistry
}

// Register registers a model in the global registry.
func Register(model any) error {
	return globalRegistry.Register(model)
}

// MustRegister registers models in the global registry and panics on error.
// Model packages call it from init.
func MustRegister(models ...any) {
	for _, m := range models {
		if err := globalRegistry.Register(m); err != nil {
			panic(err)
		}
	}
}

// Get retrieves TableMetadata from the global registry.
func Get(modelType reflect.Type) (*schema.TableMetadata, error) {
	return globalRegistry.Get(modelType)
}

// GetByModel retrieves TableMetadata by model name from the global registry.
func GetByModel(modelName string) (*schema.TableMetadata, error) {
	return globalRegistry.GetByModel(modelName)
}

// GetByName retrieves TableMetadata by table name from the global registry.
func GetByName(tableName string) (*schema.TableMetadata, error) {
	return globalRegistry.GetByName(tableName)
}

// All returns all registered tables from the global registry.
func All() []*schema.TableMetadata {
	return globalRegistry.All()
}

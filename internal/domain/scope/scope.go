// Package scope deriva, a partir del rol y las tiendas asignadas de un actor,
// qué tiendas y productos puede ver y sobre cuáles puede operar.
//
// Es la única tabla de capacidades por rol: el resto de componentes consulta
// Capability en lugar de comparar roles por su cuenta.
package scope

import (
	"sort"
	"strings"

	"github.com/jhoicas/pos-multitienda/internal/domain"
)

// Role rol cerrado de un actor.
type Role uint8

const (
	RoleAdmin Role = iota + 1
	RoleManager
	RoleSeller
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleManager:
		return "manager"
	case RoleSeller:
		return "seller"
	}
	return "unknown"
}

// ParseRole convierte el texto del token/sesión a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, nil
	case "manager":
		return RoleManager, nil
	case "seller":
		return RoleSeller, nil
	}
	return 0, domain.ErrInvalidInput
}

// ProductVisibilityMode cómo se filtra y anota el catálogo para un rol.
type ProductVisibilityMode uint8

const (
	// ProductsAll todos los productos con stock total.
	ProductsAll ProductVisibilityMode = iota + 1
	// ProductsWithStoreStock todos los productos anotados con el stock de cada tienda asignada.
	ProductsWithStoreStock
	// ProductsInStockOnly solo productos con stock positivo en alguna tienda asignada.
	ProductsInStockOnly
)

// ActorScope rol y tiendas asignadas de quien ejecuta la operación.
// Lo entrega el colaborador de sesión y se trata como valor inmutable por llamada.
type ActorScope struct {
	ActorID  string
	Role     Role
	StoreIDs []string
}

// NewActorScope normaliza las tiendas asignadas (sin vacíos ni duplicados, ordenadas).
func NewActorScope(actorID string, role Role, storeIDs ...string) ActorScope {
	seen := make(map[string]struct{}, len(storeIDs))
	ids := make([]string, 0, len(storeIDs))
	for _, id := range storeIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ActorScope{ActorID: actorID, Role: role, StoreIDs: ids}
}

type capability struct {
	allStores bool
	products  ProductVisibilityMode
}

var capabilities = map[Role]capability{
	RoleAdmin:   {allStores: true, products: ProductsAll},
	RoleManager: {allStores: false, products: ProductsWithStoreStock},
	RoleSeller:  {allStores: false, products: ProductsInStockOnly},
}

// Capability capacidades efectivas de un actor.
type Capability struct {
	role     Role
	caps     capability
	assigned map[string]struct{}
	ordered  []string
}

// Resolve calcula las capacidades del actor. Función pura: sin I/O ni estado global.
// Un rol desconocido no tiene capacidades.
func Resolve(actor ActorScope) Capability {
	norm := NewActorScope(actor.ActorID, actor.Role, actor.StoreIDs...)
	assigned := make(map[string]struct{}, len(norm.StoreIDs))
	for _, id := range norm.StoreIDs {
		assigned[id] = struct{}{}
	}
	return Capability{
		role:     actor.Role,
		caps:     capabilities[actor.Role],
		assigned: assigned,
		ordered:  norm.StoreIDs,
	}
}

// Role rol resuelto.
func (c Capability) Role() Role { return c.role }

// SeesAllStores true si el rol ve todas las tiendas sin importar la asignación.
func (c Capability) SeesAllStores() bool { return c.caps.allStores }

// CanActOnStore true para admin siempre; para manager/seller solo en tiendas asignadas.
func (c Capability) CanActOnStore(storeID string) bool {
	if storeID == "" || c.caps.products == 0 {
		return false
	}
	if c.caps.allStores {
		return true
	}
	_, ok := c.assigned[storeID]
	return ok
}

// VisibleStoreIDs tiendas visibles: allStoreIDs para admin, las asignadas para el resto.
// Un resultado vacío significa "nada sobre qué operar", no un error.
func (c Capability) VisibleStoreIDs(allStoreIDs []string) []string {
	if c.caps.allStores {
		out := append([]string(nil), allStoreIDs...)
		sort.Strings(out)
		return out
	}
	if c.caps.products == 0 {
		return []string{}
	}
	return append([]string{}, c.ordered...)
}

// ProductVisibility modo de visibilidad del catálogo (0 si el rol no tiene capacidades).
func (c Capability) ProductVisibility() ProductVisibilityMode { return c.caps.products }

// Empty true cuando el actor no puede operar sobre ninguna tienda.
func (c Capability) Empty() bool {
	if c.caps.allStores {
		return false
	}
	return c.caps.products == 0 || len(c.ordered) == 0
}

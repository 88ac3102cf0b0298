package hcloud

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/imamik/vcdflow/internal/platform/locator"
)

// Collection paths of the resources the adapter exposes.
const (
	pathServers         = "/servers/"
	pathPlacementGroups = "/placement_groups/"
	pathContainers      = "/containers/"
	pathImages          = "/images/"
	pathNetworks        = "/networks/"
	pathCatalogs        = "/catalogs/"
	pathTasks           = "/tasks/"
)

var collections = []string{
	pathServers,
	pathPlacementGroups,
	pathContainers,
	pathImages,
	pathNetworks,
	pathCatalogs,
	pathTasks,
}

// ref is a parsed href.
type ref struct {
	collection string
	key        string
}

// num returns the numeric id of the referenced resource.
func (r ref) num() (int64, error) {
	id, err := strconv.ParseInt(r.key, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", strings.Trim(r.collection, "/"), r.key)
	}
	return id, nil
}

func (a *Adapter) href(collection string, id int64) string {
	return a.hrefKey(collection, strconv.FormatInt(id, 10))
}

func (a *Adapter) hrefKey(collection, key string) string {
	return locator.ToHref(a.ep, collection+key)
}

// parse splits href into its collection and key.
func (a *Adapter) parse(href string) (ref, error) {
	id, err := locator.ToID(a.ep, href)
	if err != nil {
		return ref{}, err
	}
	for _, c := range collections {
		if key, ok := strings.CutPrefix(id, c); ok && key != "" && !strings.Contains(key, "/") {
			return ref{collection: c, key: key}, nil
		}
	}
	return ref{}, fmt.Errorf("unsupported resource %s", href)
}

// parseNum parses href and checks it belongs to collection.
func (a *Adapter) parseNum(href, collection string) (int64, error) {
	r, err := a.parse(href)
	if err != nil {
		return 0, err
	}
	if r.collection != collection {
		return 0, fmt.Errorf("%s is not in %s", href, strings.Trim(collection, "/"))
	}
	return r.num()
}

// Package memory keeps encodes inside the container's memory budget.
//
// [ConfigureFromEnv] derives GOMEMLIMIT from MEMORY_LIMIT (usually set from
// the Kubernetes Downward API) and MEMORY_RATIO. Call it first thing in main.
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
//	- name: MEMORY_RATIO
//	  value: "0.7"
//
// [Monitor] samples the heap and, once usage crosses the critical water mark,
// makes [Monitor.Wait] block until it drops below the high water mark. Batch
// runs call Wait before starting each encode.
package memory

package redis

// Key layout. Everything lives under the "courier:" namespace:
//
//	courier:job:{id}    hash holding one job
//	courier:queue:{name} sorted set of due job IDs, scored by run time
//	courier:job_ids     set of all job IDs, for enumeration
//	courier:dlq:{id}    hash holding one DLQ entry
//	courier:dlq_ids     set of all DLQ entry IDs

const keyPrefix = "courier:"

func jobKey(id string) string { return keyPrefix + "job:" + id }

func queueKey(name string) string { return keyPrefix + "queue:" + name }

const jobIDsKey = keyPrefix + "job_ids"

func dlqKey(id string) string { return keyPrefix + "dlq:" + id }

const dlqIDsKey = keyPrefix + "dlq_ids"

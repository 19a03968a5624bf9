package models

// PartitionType is the partitioning scheme a recommendation suggests.
type PartitionType string

const (
	PartitionRange PartitionType = "range"
	PartitionList  PartitionType = "list"
	PartitionHash  PartitionType = "hash"
)

// PartitionRecommendation is an advisory partitioning plan for one table.
// No execution path exists for this entity: the advisor that produces it
// holds no reference to the executor.
type PartitionRecommendation struct {
	Table               string        `json:"table"`
	PartitionKey        string        `json:"partition_key"`
	Type                PartitionType `json:"partition_type"`
	Interval            string        `json:"interval,omitempty"`
	EstimatedPartitions int           `json:"estimated_partitions"`
	Confidence          float64       `json:"confidence"`
	Benefits            []string      `json:"benefits"`
	Risks               []string      `json:"risks"`
	MigrationSteps      []string      `json:"migration_steps"`
	SQLCommands         []string      `json:"sql_commands"`
}

package config

type (
	//TableCfg is the container for other table config sections
	TableCfg struct {
		Log   LogTableCfg
		Score ScoreTableCfg
	}

	//LogTableCfg contains the configuration for logging
	LogTableCfg struct {
		LogTable string `default:"logs"`
	}

	//ScoreTableCfg contains the names of the score store tables/collections
	ScoreTableCfg struct {
		ScoreTable string `default:"cydime_scores"`
	}
)

package log

// Model and operation context.
const (
	// ModelNameKey identifies the type of model, e.g. "KNNRegressor".
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed ("fit", "predict", ...).
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the experiment lifecycle.
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	SamplesKey   = "data.samples"
	FeaturesKey  = "data.features"
	TargetsKey   = "data.targets"
	BatchSizeKey = "data.batch_size"
	PathKey      = "data.path"
	ColumnsKey   = "data.columns"
	SequenceKey  = "data.sequence_length"
)

// Performance and metrics.
const (
	DurationMsKey = "perf.duration_ms"
	LossKey       = "metrics.loss"
	MSEKey        = "metrics.mse"
	MAEKey        = "metrics.mae"
	MAPEKey       = "metrics.mape"
	IterationKey  = "training.iteration"
	EpochKey      = "training.epoch"
)

// Cross-validation and experiment bookkeeping.
const (
	// FoldKey is the label of the held-out run of a fold.
	FoldKey = "cv.fold"

	// FoldsKey is the number of folds in a cross-validation.
	FoldsKey = "cv.folds"

	// StoreKey is the path or DSN of the experiment record store.
	StoreKey = "memo.store"

	// ParamsKey is the canonical parameter string of an experiment.
	ParamsKey = "memo.params"

	// DeviceKey is the compute target of a training run.
	DeviceKey = "infra.device"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationScore     = "score"
	OperationLoad      = "load"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhasePreprocessing = "preprocessing"
)

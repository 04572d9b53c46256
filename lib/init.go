package lib

import (
	//source
	_ "mixer/lib/component/source/kafka"
	_ "mixer/lib/component/source/mock"
	_ "mixer/lib/component/source/spooldir"

	//operator
	_ "mixer/lib/component/operator/mixing"
	_ "mixer/lib/component/operator/sample"
	_ "mixer/lib/component/operator/tengo"

	//sink
	_ "mixer/lib/component/sink/echo"
	_ "mixer/lib/component/sink/kafka"

	//emit
	_ "mixer/lib/emit/replicating"
)

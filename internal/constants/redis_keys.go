package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// ResumeModulePrefix 简历模块
	ResumeModulePrefix = "resume"

	// EntityParsed 解析结果实体
	EntityParsed = "parsed"
	// EntityLock 分布式锁实体
	EntityLock = "lock"

	// KeyParsedResume 按原始文件MD5缓存的解析结果 (STRING, JSON)
	// 格式: app:resume:parsed:{md5}
	KeyParsedResume = AppPrefix + ":" + ResumeModulePrefix + ":" + EntityParsed + ":%s"

	// KeyParseLock 同一文件并发解析时的互斥锁 (STRING)
	// 格式: app:resume:lock:{md5}
	KeyParseLock = AppPrefix + ":" + ResumeModulePrefix + ":" + EntityLock + ":%s"
)
